package timeseries

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// MemoryStore is an in-memory Store for tests and local development
type MemoryStore struct {
	mu      sync.RWMutex
	latest  map[string]telemetry.SensorReading
	history map[string][]telemetry.Point
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		latest:  make(map[string]telemetry.SensorReading),
		history: make(map[string][]telemetry.Point),
	}
}

func (s *MemoryStore) WriteLatest(ctx context.Context, reading *telemetry.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[reading.DeviceID] = *reading
	return nil
}

func (s *MemoryStore) WriteHistory(ctx context.Context, reading *telemetry.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, param := range telemetry.Parameters {
		value, ok := reading.Value(param)
		if !ok {
			continue
		}
		key := reading.DeviceID + ":" + string(param)
		s.history[key] = append(s.history[key], telemetry.Point{
			Value:     value,
			Timestamp: reading.Timestamp,
		})
	}
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context, deviceID string) (*telemetry.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reading, ok := s.latest[deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &reading, nil
}

func (s *MemoryStore) History(ctx context.Context, deviceID string, param telemetry.Parameter, since time.Time) ([]telemetry.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []telemetry.Point
	for _, pt := range s.history[deviceID+":"+string(param)] {
		if !pt.Timestamp.Before(since) {
			points = append(points, pt)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

func (s *MemoryStore) Close() error { return nil }
