// Package notification delivers alert emails to subscribed users.
package notification

import (
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Subscriber represents a user who receives alert notifications.
// Collection: subscribers
type Subscriber struct {
	ID                   string `bson:"_id" json:"id"`
	Name                 string `bson:"name,omitempty" json:"name,omitempty"`
	Email                string `bson:"email" json:"email"`
	NotificationsEnabled bool   `bson:"notificationsEnabled" json:"notificationsEnabled"`

	// Severities, Parameters and DeviceIDs narrow the subscription.
	// Empty means all severities / all parameters / all devices.
	Severities []telemetry.Severity  `bson:"severities,omitempty" json:"severities,omitempty"`
	Parameters []telemetry.Parameter `bson:"parameters,omitempty" json:"parameters,omitempty"`
	DeviceIDs  []string              `bson:"deviceIds,omitempty" json:"deviceIds,omitempty"`

	QuietHoursEnabled bool      `bson:"quietHoursEnabled" json:"quietHoursEnabled"`
	QuietStartHour    int       `bson:"quietStartHour,omitempty" json:"quietStartHour,omitempty"`
	QuietEndHour      int       `bson:"quietEndHour,omitempty" json:"quietEndHour,omitempty"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

// WantsSeverity reports whether the subscriber subscribed to a
// severity. An empty filter accepts everything.
func (s *Subscriber) WantsSeverity(sev telemetry.Severity) bool {
	if len(s.Severities) == 0 {
		return true
	}
	for _, want := range s.Severities {
		if want == sev {
			return true
		}
	}
	return false
}

// WantsParameter reports whether the subscriber cares about a
// parameter. An empty filter accepts everything.
func (s *Subscriber) WantsParameter(p telemetry.Parameter) bool {
	if len(s.Parameters) == 0 {
		return true
	}
	for _, want := range s.Parameters {
		if want == p {
			return true
		}
	}
	return false
}

// WantsDevice reports whether the subscriber cares about a device. An
// empty filter accepts everything.
func (s *Subscriber) WantsDevice(deviceID string) bool {
	if len(s.DeviceIDs) == 0 {
		return true
	}
	for _, want := range s.DeviceIDs {
		if want == deviceID {
			return true
		}
	}
	return false
}

// InQuietHours reports whether now falls inside the subscriber's quiet
// window. Windows are hour-of-day bounds within one calendar day; a
// window with start after end never matches.
// TODO: suppress overnight windows (start > end) across midnight.
func (s *Subscriber) InQuietHours(now time.Time) bool {
	if !s.QuietHoursEnabled {
		return false
	}
	hour := now.Hour()
	return hour >= s.QuietStartHour && hour < s.QuietEndHour
}
