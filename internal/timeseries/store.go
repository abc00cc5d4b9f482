// Package timeseries stores sensor readings in a time-series backend.
// Two backends are supported: Redis (latest snapshot plus a bounded
// per-parameter history window) and InfluxDB.
package timeseries

import (
	"context"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Store persists readings and serves the recent history window used by
// trend analysis.
type Store interface {
	// WriteLatest replaces the latest-reading snapshot for the device
	WriteLatest(ctx context.Context, reading *telemetry.SensorReading) error

	// WriteHistory appends the reading to the device's history
	WriteHistory(ctx context.Context, reading *telemetry.SensorReading) error

	// Latest returns the most recent snapshot, or repository.ErrNotFound
	Latest(ctx context.Context, deviceID string) (*telemetry.SensorReading, error)

	// History returns points for one parameter since the given time,
	// oldest first
	History(ctx context.Context, deviceID string, param telemetry.Parameter, since time.Time) ([]telemetry.Point, error)

	// Close releases the backend connection
	Close() error
}
