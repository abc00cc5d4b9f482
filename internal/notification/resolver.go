package notification

import (
	"context"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Resolver selects which subscribers should receive an alert
type Resolver struct {
	subscribers SubscriberRepository
}

// NewResolver creates a recipient resolver
func NewResolver(subscribers SubscriberRepository) *Resolver {
	return &Resolver{subscribers: subscribers}
}

// Resolve returns the subscribers that should be notified for an alert
// on the given device and parameter at the given time. Disabled
// subscribers, severity, parameter and device filters and active
// quiet windows all exclude a recipient.
func (r *Resolver) Resolve(ctx context.Context, severity telemetry.Severity, param telemetry.Parameter, deviceID string, now time.Time) ([]*Subscriber, error) {
	enabled, err := r.subscribers.FindEnabled(ctx)
	if err != nil {
		return nil, err
	}

	recipients := make([]*Subscriber, 0, len(enabled))
	for _, sub := range enabled {
		if !sub.WantsSeverity(severity) {
			continue
		}
		if !sub.WantsParameter(param) {
			continue
		}
		if !sub.WantsDevice(deviceID) {
			continue
		}
		if sub.InQuietHours(now) {
			continue
		}
		recipients = append(recipients, sub)
	}
	return recipients, nil
}
