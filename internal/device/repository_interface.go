package device

import (
	"context"
	"time"
)

// Registry defines the interface for device data access.
// All implementations must be wrapped with instrumentation.
type Registry interface {
	FindByID(ctx context.Context, id string) (*Device, error)
	Insert(ctx context.Context, device *Device) error
	Update(ctx context.Context, device *Device) error

	// TouchStatus marks the device online and refreshes lastSeen
	TouchStatus(ctx context.Context, id string, seenAt time.Time) error

	// MarkOfflineBefore flips online devices not seen since the cutoff
	// to offline and returns how many changed
	MarkOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Delete(ctx context.Context, id string) error
}
