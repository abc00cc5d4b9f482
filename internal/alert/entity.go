// Package alert manages water-quality alert records and their lifecycle.
package alert

import (
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// AlertType defines what triggered an alert
type AlertType string

const (
	AlertTypeThreshold AlertType = "THRESHOLD"
	AlertTypeTrend     AlertType = "TREND"
)

// AlertStatus defines the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

// Alert represents a detected water-quality problem.
// Collection: alerts
//
// At most one ACTIVE alert exists per (deviceId, parameter, alertType);
// the partial unique index enforces this across concurrent writers.
type Alert struct {
	ID             string                   `bson:"_id" json:"id"`
	DeviceID       string                   `bson:"deviceId" json:"deviceId"`
	Parameter      telemetry.Parameter      `bson:"parameter" json:"parameter"`
	AlertType      AlertType                `bson:"alertType" json:"alertType"`
	Severity       telemetry.Severity       `bson:"severity" json:"severity"`
	Status         AlertStatus              `bson:"status" json:"status"`
	Value          float64                  `bson:"value" json:"value"`
	ThresholdValue float64                  `bson:"thresholdValue,omitempty" json:"thresholdValue,omitempty"`
	PreviousValue  float64                  `bson:"previousValue,omitempty" json:"previousValue,omitempty"`
	ChangePct      float64                  `bson:"changePct,omitempty" json:"changePct,omitempty"`
	TrendDirection telemetry.TrendDirection `bson:"trendDirection,omitempty" json:"trendDirection,omitempty"`
	Message        string                   `bson:"message,omitempty" json:"message,omitempty"`
	NotifiedUsers  []string                 `bson:"notifiedUsers,omitempty" json:"notifiedUsers,omitempty"`
	CreatedAt      time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time                `bson:"updatedAt" json:"updatedAt"`
	AcknowledgedAt time.Time                `bson:"acknowledgedAt,omitempty" json:"acknowledgedAt,omitempty"`
	ResolvedAt     time.Time                `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// IsActive returns true if the alert is active
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// IsTerminal returns true if the alert reached its final state
func (a *Alert) IsTerminal() bool {
	return a.Status == AlertStatusResolved
}

// CanTransition reports whether the status change is allowed.
// Resolved is terminal; acknowledgement cannot be undone.
func (a *Alert) CanTransition(to AlertStatus) bool {
	switch a.Status {
	case AlertStatusActive:
		return to == AlertStatusAcknowledged || to == AlertStatusResolved
	case AlertStatusAcknowledged:
		return to == AlertStatusResolved
	default:
		return false
	}
}

// WasNotified returns true if the user already received this alert
func (a *Alert) WasNotified(userID string) bool {
	for _, id := range a.NotifiedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
