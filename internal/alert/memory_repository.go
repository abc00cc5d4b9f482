package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. A single mutex gives it the same atomicity the MongoDB
// implementation gets from transactions.
type MemoryRepository struct {
	mu     sync.Mutex
	alerts map[string]*Alert
}

// NewMemoryRepository creates an empty in-memory alert repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[string]*Alert)}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *MemoryRepository) findActiveLocked(deviceID string, param telemetry.Parameter, alertType AlertType) *Alert {
	for _, a := range r.alerts {
		if a.DeviceID == deviceID && a.Parameter == param && a.AlertType == alertType && a.Status == AlertStatusActive {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) FindActive(ctx context.Context, deviceID string, param telemetry.Parameter, alertType AlertType) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.findActiveLocked(deviceID, param, alertType); a != nil {
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) FindByDevice(ctx context.Context, deviceID string, limit int64) ([]*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var alerts []*Alert
	for _, a := range r.alerts {
		if a.DeviceID == deviceID {
			copied := *a
			alerts = append(alerts, &copied)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	if limit > 0 && int64(len(alerts)) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (r *MemoryRepository) CreateIfAbsent(ctx context.Context, candidate *Alert) (*Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findActiveLocked(candidate.DeviceID, candidate.Parameter, candidate.AlertType); existing != nil {
		copied := *existing
		return &copied, false, nil
	}

	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now()
	candidate.Status = AlertStatusActive
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	stored := *candidate
	r.alerts[stored.ID] = &stored
	copied := stored
	return &copied, true, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status AlertStatus) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !a.CanTransition(status) {
		return nil, repository.ErrInvalidTransition
	}

	now := time.Now()
	a.Status = status
	a.UpdatedAt = now
	switch status {
	case AlertStatusAcknowledged:
		a.AcknowledgedAt = now
	case AlertStatusResolved:
		a.ResolvedAt = now
	}

	copied := *a
	return &copied, nil
}

func (r *MemoryRepository) AppendNotified(ctx context.Context, id string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, userID := range userIDs {
		if !a.WasNotified(userID) {
			a.NotifiedUsers = append(a.NotifiedUsers, userID)
		}
	}
	a.UpdatedAt = time.Now()
	return nil
}
