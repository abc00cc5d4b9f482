package digest

import (
	"context"
	"log/slog"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Occurrence is one suppressed repeat violation to fold into digests
type Occurrence struct {
	DeviceID  string
	Parameter telemetry.Parameter
	Severity  telemetry.Severity
	Value     float64
	Band      telemetry.Band
	At        time.Time

	// MultiParam marks a reading that violated several parameters at
	// once; it lands in the multi_param category
	MultiParam bool
}

// Aggregator folds suppressed repeat alerts into per-recipient digests.
// Quiet hours do not apply here: accumulation is silent and delivery is
// deferred to the digest cycle anyway.
type Aggregator struct {
	digests     Repository
	subscribers notification.SubscriberRepository
}

// NewAggregator creates a digest aggregator
func NewAggregator(digests Repository, subscribers notification.SubscriberRepository) *Aggregator {
	return &Aggregator{digests: digests, subscribers: subscribers}
}

// Record folds the occurrence into a digest for every subscriber whose
// severity, parameter and device filters it clears.
func (a *Aggregator) Record(ctx context.Context, occ Occurrence) error {
	category := Categorize(occ.Parameter, occ.Value, occ.Band)
	if occ.MultiParam {
		category = CategoryMultiParam
	}
	day := DayOf(occ.At)

	item := DigestItem{
		DeviceID:   occ.DeviceID,
		Parameter:  occ.Parameter,
		Severity:   occ.Severity,
		Value:      occ.Value,
		OccurredAt: occ.At,
	}

	subs, err := a.subscribers.FindEnabled(ctx)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if !sub.WantsSeverity(occ.Severity) {
			continue
		}
		if !sub.WantsParameter(occ.Parameter) || !sub.WantsDevice(occ.DeviceID) {
			continue
		}
		if _, err := a.digests.Record(ctx, sub.ID, category, day, item); err != nil {
			slog.Error("Failed to record digest occurrence", "recipient", sub.ID, "category", category, "error", err)
		}
	}
	return nil
}
