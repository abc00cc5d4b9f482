package digest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

// MemoryRepository is an in-memory Repository for tests and local
// development
type MemoryRepository struct {
	mu      sync.Mutex
	digests map[string]*AlertDigest
}

// NewMemoryRepository creates an empty in-memory digest repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{digests: make(map[string]*AlertDigest)}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*AlertDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.digests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *MemoryRepository) Record(ctx context.Context, recipient string, category Category, day string, item DigestItem) (*AlertDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var d *AlertDigest
	for _, existing := range r.digests {
		if existing.Recipient == recipient && existing.Category == category && existing.Day == day {
			d = existing
			break
		}
	}

	now := time.Now()
	if d == nil {
		d = &AlertDigest{
			ID:        uuid.NewString(),
			Recipient: recipient,
			Category:  category,
			Day:       day,
			AckToken:  uuid.NewString(),
			CreatedAt: now,
		}
		r.digests[d.ID] = d
	}

	d.Items = append(d.Items, item)
	if len(d.Items) > MaxItems {
		// Oldest items fall off; the counter still records every occurrence
		d.Items = d.Items[len(d.Items)-MaxItems:]
	}
	d.OccurrenceCount++
	d.UpdatedAt = now

	copied := *d
	return &copied, nil
}

func (r *MemoryRepository) FindEligible(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]*AlertDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var eligible []*AlertDigest
	for _, d := range r.digests {
		if d.IsEligible(now, maxAttempts) {
			copied := *d
			eligible = append(eligible, &copied)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].CreatedAt.Before(eligible[j].CreatedAt) })
	if limit > 0 && int64(len(eligible)) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (r *MemoryRepository) MarkSent(ctx context.Context, id string, cooldownUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.digests[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	d.SentAt = now
	d.LastAttemptAt = now
	d.CooldownUntil = cooldownUntil
	d.SendAttempts++
	d.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.digests[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	d.LastAttemptAt = now
	d.SendAttempts++
	d.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) Acknowledge(ctx context.Context, id, token string) (*AlertDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.digests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if d.AckToken != token {
		return nil, ErrTokenMismatch
	}
	if !d.IsAcknowledged {
		now := time.Now()
		d.IsAcknowledged = true
		d.AcknowledgedAt = now
		d.UpdatedAt = now
	}
	copied := *d
	return &copied, nil
}
