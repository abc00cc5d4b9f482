package alert

import (
	"context"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Repository defines the interface for alert data access.
// All implementations must be wrapped with instrumentation.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Alert, error)
	FindActive(ctx context.Context, deviceID string, param telemetry.Parameter, alertType AlertType) (*Alert, error)
	FindByDevice(ctx context.Context, deviceID string, limit int64) ([]*Alert, error)

	// CreateIfAbsent inserts the alert unless an ACTIVE alert already
	// exists for the same (deviceId, parameter, alertType). It returns
	// the stored alert and whether this call created it. The check and
	// insert are atomic with respect to concurrent callers.
	CreateIfAbsent(ctx context.Context, candidate *Alert) (*Alert, bool, error)

	// UpdateStatus applies a lifecycle transition, rejecting invalid
	// ones with repository.ErrInvalidTransition
	UpdateStatus(ctx context.Context, id string, status AlertStatus) (*Alert, error)

	// AppendNotified records users who received a notification for the
	// alert, without duplicating entries
	AppendNotified(ctx context.Context, id string, userIDs []string) error
}
