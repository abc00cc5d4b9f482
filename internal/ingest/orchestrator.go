// Package ingest turns queued telemetry messages into stored readings,
// alerts and notifications.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/cache"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/classify"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/config"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/device"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/timeseries"
)

// AlertNotifier fans a newly created alert out to its recipients
type AlertNotifier interface {
	Dispatch(ctx context.Context, a *alert.Alert) ([]notification.RecipientResult, error)
}

// DigestRecorder folds a suppressed repeat violation into digests
type DigestRecorder interface {
	Record(ctx context.Context, occ digest.Occurrence) error
}

// Orchestrator processes one telemetry message end to end. Validation
// failures and unknown devices drop the message; only failures worth a
// redelivery propagate to the caller.
type Orchestrator struct {
	cfg        config.IngestConfig
	devices    device.Registry
	tracker    *device.Tracker
	store      timeseries.Store
	alerts     alert.Repository
	notifier   AlertNotifier
	digests    DigestRecorder
	thresholds telemetry.ThresholdSource

	// debounce suppresses repeat notifications per alert key. It is
	// advisory only: the alert repository's atomic create is what
	// guards against duplicate alerts.
	debounce *cache.Cache[string]

	// counters drives history sampling per device
	counters *cache.Cache[int64]

	now func() time.Time
}

// NewOrchestrator creates an ingestion orchestrator
func NewOrchestrator(
	cfg config.IngestConfig,
	devices device.Registry,
	tracker *device.Tracker,
	store timeseries.Store,
	alerts alert.Repository,
	notifier AlertNotifier,
	digests DigestRecorder,
	thresholds telemetry.ThresholdSource,
) *Orchestrator {
	if thresholds == nil {
		thresholds = telemetry.NewStaticThresholds(nil)
	}

	return &Orchestrator{
		cfg:        cfg,
		devices:    devices,
		tracker:    tracker,
		store:      store,
		alerts:     alerts,
		notifier:   notifier,
		digests:    digests,
		thresholds: thresholds,
		debounce:   cache.New[string]("alert_debounce", cfg.DebounceTTL, cfg.DebounceMaxSize),
		counters:   cache.New[int64]("reading_counter", cfg.CounterTTL, cfg.CounterMaxSize),
		now:        time.Now,
	}
}

// ProcessMessage handles one queued telemetry envelope. A non-nil
// return means the message should be redelivered.
func (o *Orchestrator) ProcessMessage(ctx context.Context, data []byte) error {
	start := o.now()
	err := o.processMessage(ctx, data)
	metrics.ReadingProcessingDuration.Observe(time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) processMessage(ctx context.Context, data []byte) error {
	env, err := telemetry.DecodeEnvelope(data)
	if err != nil {
		metrics.ReadingsProcessed.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping malformed telemetry message", "error", err)
		return nil
	}

	if err := telemetry.ValidateDeviceID(env.DeviceID); err != nil {
		metrics.ReadingsProcessed.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping message with bad device ID", "deviceId", env.DeviceID, "error", err)
		return nil
	}

	payloads := env.Payloads()
	if err := telemetry.ValidateBatchSize(len(payloads), o.cfg.MaxBatchSize); err != nil {
		metrics.ReadingsProcessed.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping message with bad batch size", "deviceId", env.DeviceID, "count", len(payloads), "error", err)
		return nil
	}
	metrics.BatchSize.Observe(float64(len(payloads)))

	dev, err := o.devices.FindByID(ctx, env.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.ReadingsProcessed.WithLabelValues("unregistered").Inc()
			slog.Warn("Dropping reading from unregistered device", "deviceId", env.DeviceID)
			return nil
		}
		if classify.Classify(err) == classify.ActionRetry {
			return fmt.Errorf("device lookup: %w", err)
		}
		metrics.ReadingsProcessed.WithLabelValues("error").Inc()
		slog.Error("Device lookup failed, dropping message", "deviceId", env.DeviceID, "error", err)
		return nil
	}

	seenAt := o.now()
	if touchErr := o.tracker.Touch(ctx, dev.ID, seenAt); touchErr != nil {
		// Liveness is best effort; the reading itself still counts
		slog.Warn("Failed to refresh device status", "deviceId", dev.ID, "error", touchErr)
	}

	// Unplaced devices report in but are not evaluated
	if !dev.HasLocation() {
		metrics.ReadingsProcessed.WithLabelValues("status_only").Inc()
		slog.Debug("Device has no location, status-only processing", "deviceId", dev.ID)
		return nil
	}

	var retryable []error
	for _, payload := range payloads {
		if err := o.processReading(ctx, dev, payload); err != nil {
			retryable = append(retryable, err)
		}
	}
	return errors.Join(retryable...)
}

func (o *Orchestrator) processReading(ctx context.Context, dev *device.Device, payload telemetry.ReadingPayload) error {
	if err := telemetry.ValidateReading(payload); err != nil {
		metrics.ReadingsProcessed.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping invalid reading", "deviceId", dev.ID, "error", err)
		return nil
	}

	now := o.now()
	reading := &telemetry.SensorReading{
		DeviceID:   dev.ID,
		Turbidity:  payload.Turbidity,
		TDS:        payload.TDS,
		PH:         payload.PH,
		Timestamp:  telemetry.NormalizeTimestamp(payload.Timestamp, now, o.cfg.MaxTimestampDrift),
		ReceivedAt: now,
	}

	if err := o.store.WriteLatest(ctx, reading); err != nil {
		if classify.Classify(err) == classify.ActionRetry {
			metrics.ReadingsProcessed.WithLabelValues("error").Inc()
			return fmt.Errorf("write latest: %w", err)
		}
		slog.Error("Failed to write latest reading", "deviceId", dev.ID, "error", err)
	}

	// Every Nth accepted reading also lands in history
	count := cache.Increment(o.counters, dev.ID, 1)
	if (count-1)%int64(o.cfg.HistorySampleEvery) == 0 {
		if err := o.store.WriteHistory(ctx, reading); err != nil {
			if classify.Classify(err) == classify.ActionRetry {
				metrics.ReadingsProcessed.WithLabelValues("error").Inc()
				return fmt.Errorf("write history: %w", err)
			}
			slog.Error("Failed to write history", "deviceId", dev.ID, "error", err)
		} else {
			metrics.HistoryWrites.Inc()
		}
	}

	if err := o.evaluate(ctx, dev, reading); err != nil {
		metrics.ReadingsProcessed.WithLabelValues("error").Inc()
		return err
	}

	metrics.ReadingsProcessed.WithLabelValues("success").Inc()
	return nil
}

// thresholdViolation pairs a parameter with its threshold result
type thresholdViolation struct {
	param  telemetry.Parameter
	value  float64
	result telemetry.ThresholdResult
}

func (o *Orchestrator) evaluate(ctx context.Context, dev *device.Device, reading *telemetry.SensorReading) error {
	bands, err := o.thresholds.GetThresholdConfig(ctx)
	if err != nil {
		// A stale default beats dropping the evaluation
		slog.Warn("Failed to load threshold config, using defaults", "error", err)
		bands = telemetry.DefaultThresholds()
	}

	var violations []thresholdViolation
	for _, param := range telemetry.Parameters {
		value, ok := reading.Value(param)
		if !ok {
			continue
		}
		if res := telemetry.CheckThreshold(param, value, bands); res.Exceeded {
			violations = append(violations, thresholdViolation{param: param, value: value, result: res})
		}
	}

	multi := len(violations) > 1
	var retryable []error

	for _, v := range violations {
		candidate := &alert.Alert{
			DeviceID:       dev.ID,
			Parameter:      v.param,
			AlertType:      alert.AlertTypeThreshold,
			Severity:       v.result.Severity,
			Value:          v.value,
			ThresholdValue: v.result.ThresholdValue,
			Message:        fmt.Sprintf("%s %g exceeds threshold %g", v.param, v.value, v.result.ThresholdValue),
		}
		if err := o.raiseAlert(ctx, dev, candidate, bands[v.param], reading.Timestamp, multi); err != nil {
			retryable = append(retryable, err)
		}
	}

	for _, param := range telemetry.Parameters {
		value, ok := reading.Value(param)
		if !ok {
			continue
		}
		if err := o.evaluateTrend(ctx, dev, param, value, bands[param], reading.Timestamp); err != nil {
			retryable = append(retryable, err)
		}
	}

	return errors.Join(retryable...)
}

func (o *Orchestrator) evaluateTrend(ctx context.Context, dev *device.Device, param telemetry.Parameter, value float64, band telemetry.Band, at time.Time) error {
	history, err := o.store.History(ctx, dev.ID, param, at.Add(-o.cfg.TrendWindow))
	if err != nil {
		// Trend analysis is supplementary; a failed history read never
		// forces a redelivery
		slog.Warn("Failed to read history for trend analysis", "deviceId", dev.ID, "parameter", param, "error", err)
		return nil
	}

	res := telemetry.AnalyzeTrend(value, history, telemetry.TrendConfig{
		MinSamples:   o.cfg.TrendMinSamples,
		ThresholdPct: o.cfg.TrendThresholdPct,
	})
	if !res.HasTrend {
		return nil
	}

	candidate := &alert.Alert{
		DeviceID:       dev.ID,
		Parameter:      param,
		AlertType:      alert.AlertTypeTrend,
		Severity:       res.Severity,
		Value:          value,
		PreviousValue:  res.PreviousValue,
		ChangePct:      res.ChangePct,
		TrendDirection: res.Direction,
		Message:        fmt.Sprintf("%s %s %.1f%% from recent average %g", param, res.Direction, res.ChangePct, res.PreviousValue),
	}
	return o.raiseAlert(ctx, dev, candidate, band, at, false)
}

func (o *Orchestrator) raiseAlert(ctx context.Context, dev *device.Device, candidate *alert.Alert, band telemetry.Band, at time.Time, multi bool) error {
	stored, created, err := o.alerts.CreateIfAbsent(ctx, candidate)
	if err != nil {
		if classify.Classify(err) == classify.ActionRetry {
			return fmt.Errorf("create alert: %w", err)
		}
		slog.Error("Failed to create alert", "deviceId", dev.ID, "parameter", candidate.Parameter, "error", err)
		return nil
	}

	key := debounceKey(dev.ID, candidate.Parameter, candidate.AlertType)

	if !created {
		if _, fresh := o.debounce.Get(key); fresh {
			// Repeat inside the debounce window: accumulate silently
			o.recordDigest(ctx, dev, candidate, band, at, multi)
			return nil
		}
	}

	o.debounce.Set(key, stored.ID)
	if _, err := o.notifier.Dispatch(ctx, stored); err != nil {
		// Notification failures never trigger message redelivery; the
		// alert record already exists
		slog.Error("Failed to dispatch alert notifications", "alertId", stored.ID, "error", err)
	}
	return nil
}

func (o *Orchestrator) recordDigest(ctx context.Context, dev *device.Device, candidate *alert.Alert, band telemetry.Band, at time.Time, multi bool) {
	occ := digest.Occurrence{
		DeviceID:   dev.ID,
		Parameter:  candidate.Parameter,
		Severity:   candidate.Severity,
		Value:      candidate.Value,
		Band:       band,
		At:         at,
		MultiParam: multi,
	}
	if err := o.digests.Record(ctx, occ); err != nil {
		slog.Error("Failed to record digest occurrence", "deviceId", dev.ID, "parameter", candidate.Parameter, "error", err)
	}
}

func debounceKey(deviceID string, param telemetry.Parameter, alertType alert.AlertType) string {
	return deviceID + ":" + string(param) + ":" + string(alertType)
}
