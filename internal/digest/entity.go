// Package digest batches repeated alert occurrences into periodic
// summary emails instead of re-notifying on every repeat.
package digest

import (
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Category buckets related violations into one digest
type Category string

const (
	CategoryPHHigh        Category = "ph_high"
	CategoryPHLow         Category = "ph_low"
	CategoryTDSHigh       Category = "tds_high"
	CategoryTDSLow        Category = "tds_low"
	CategoryTurbidityHigh Category = "turbidity_high"
	CategoryMultiParam    Category = "multi_param"
)

// MaxItems caps how many occurrences one digest retains; further
// occurrences only bump the counter.
const MaxItems = 10

// DigestItem is one recorded alert occurrence
type DigestItem struct {
	DeviceID   string              `bson:"deviceId" json:"deviceId"`
	Parameter  telemetry.Parameter `bson:"parameter" json:"parameter"`
	Severity   telemetry.Severity  `bson:"severity" json:"severity"`
	Value      float64             `bson:"value" json:"value"`
	OccurredAt time.Time           `bson:"occurredAt" json:"occurredAt"`
}

// AlertDigest accumulates suppressed repeat alerts for one recipient,
// category and calendar day.
// Collection: alert_digests
type AlertDigest struct {
	ID              string       `bson:"_id" json:"id"`
	Recipient       string       `bson:"recipient" json:"recipient"`
	Category        Category     `bson:"category" json:"category"`
	Day             string       `bson:"day" json:"day"`
	Items           []DigestItem `bson:"items,omitempty" json:"items,omitempty"`
	OccurrenceCount int          `bson:"occurrenceCount" json:"occurrenceCount"`
	SendAttempts    int          `bson:"sendAttempts" json:"sendAttempts"`
	LastAttemptAt   time.Time    `bson:"lastAttemptAt,omitempty" json:"lastAttemptAt,omitempty"`
	SentAt          time.Time    `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	CooldownUntil   time.Time    `bson:"cooldownUntil,omitempty" json:"cooldownUntil,omitempty"`
	IsAcknowledged  bool         `bson:"isAcknowledged" json:"isAcknowledged"`
	AckToken        string       `bson:"ackToken" json:"-"`
	AcknowledgedAt  time.Time    `bson:"acknowledgedAt,omitempty" json:"acknowledgedAt,omitempty"`
	CreatedAt       time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// DayOf formats a timestamp as a digest day key
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// IsEligible reports whether the digest should be sent now.
// Acknowledged digests are terminal; exhausted attempts abandon the
// digest until its day rolls over.
func (d *AlertDigest) IsEligible(now time.Time, maxAttempts int) bool {
	if d.IsAcknowledged {
		return false
	}
	if d.SendAttempts >= maxAttempts {
		return false
	}
	if len(d.Items) == 0 {
		return false
	}
	return d.CooldownUntil.IsZero() || !d.CooldownUntil.After(now)
}

// Categorize buckets a violation by parameter and side of the band
// midpoint. Turbidity has no natural low side.
func Categorize(param telemetry.Parameter, value float64, band telemetry.Band) Category {
	switch param {
	case telemetry.ParameterPH:
		if value < band.Midpoint() {
			return CategoryPHLow
		}
		return CategoryPHHigh
	case telemetry.ParameterTDS:
		if value < band.Midpoint() {
			return CategoryTDSLow
		}
		return CategoryTDSHigh
	default:
		return CategoryTurbidityHigh
	}
}
