package device

import (
	"context"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/cache"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
)

// Tracker throttles per-device status writes. Every reading refreshes
// liveness, but the registry only sees one write per device per
// throttle window.
type Tracker struct {
	registry Registry
	seen     *cache.Cache[time.Time]
}

// NewTracker creates a status tracker with the given throttle window
func NewTracker(registry Registry, throttle time.Duration, maxDevices int) *Tracker {
	return &Tracker{
		registry: registry,
		seen:     cache.New[time.Time]("device_status", throttle, maxDevices),
	}
}

// Touch records that a device reported in. The registry write is
// skipped while a previous write for the device is still fresh.
func (t *Tracker) Touch(ctx context.Context, id string, seenAt time.Time) error {
	if _, fresh := t.seen.Get(id); fresh {
		return nil
	}

	if err := t.registry.TouchStatus(ctx, id, seenAt); err != nil {
		return err
	}

	t.seen.Set(id, seenAt)
	metrics.DeviceStatusWrites.Inc()
	return nil
}
