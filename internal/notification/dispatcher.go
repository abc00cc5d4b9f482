package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/breaker"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
)

// Outcome is the delivery result for one recipient
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeFailed         Outcome = "failed"
	OutcomeShortCircuited Outcome = "short_circuited"
	OutcomeRateLimited    Outcome = "rate_limited"
)

// RecipientResult pairs a subscriber with their delivery outcome
type RecipientResult struct {
	Subscriber *Subscriber
	Outcome    Outcome
	Err        error
}

// DispatcherConfig holds dispatcher tuning
type DispatcherConfig struct {
	// SendTimeout bounds each individual delivery
	SendTimeout time.Duration

	// MaxConcurrent limits parallel deliveries
	MaxConcurrent int

	// RatePerSecond and Burst bound outbound volume
	RatePerSecond float64
	Burst         int
}

// DefaultDispatcherConfig returns sensible defaults
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		SendTimeout:   10 * time.Second,
		MaxConcurrent: 4,
		RatePerSecond: 5,
		Burst:         10,
	}
}

// Dispatcher fans an alert out to its recipients. Deliveries run
// concurrently behind a shared circuit breaker and rate limiter; one
// failed recipient never blocks the others.
type Dispatcher struct {
	resolver *Resolver
	sender   Sender
	alerts   alert.Repository
	brk      *breaker.Breaker
	limiter  *rate.Limiter
	config   *DispatcherConfig
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(resolver *Resolver, sender Sender, alerts alert.Repository, brk *breaker.Breaker, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}

	return &Dispatcher{
		resolver: resolver,
		sender:   sender,
		alerts:   alerts,
		brk:      brk,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		config:   config,
	}
}

// Dispatch notifies every eligible recipient of the alert and records
// the successful ones on the alert document.
func (d *Dispatcher) Dispatch(ctx context.Context, a *alert.Alert) ([]RecipientResult, error) {
	recipients, err := d.resolver.Resolve(ctx, a.Severity, a.Parameter, a.DeviceID, time.Now())
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		slog.Debug("No recipients for alert", "alertId", a.ID, "severity", a.Severity)
		return nil, nil
	}

	msg := FormatAlert(a)
	results := make([]RecipientResult, len(recipients))

	sem := make(chan struct{}, d.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, sub := range recipients {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, sub *Subscriber) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = d.deliver(ctx, sub, msg)
		}(i, sub)
	}
	wg.Wait()

	var notified []string
	for _, res := range results {
		switch res.Outcome {
		case OutcomeSent:
			notified = append(notified, res.Subscriber.ID)
		case OutcomeFailed:
			slog.Warn("Notification delivery failed", "alertId", a.ID, "recipient", res.Subscriber.ID, "error", res.Err)
		case OutcomeShortCircuited:
			slog.Warn("Notification short-circuited", "alertId", a.ID, "recipient", res.Subscriber.ID)
		}
	}

	if len(notified) > 0 {
		if err := d.alerts.AppendNotified(ctx, a.ID, notified); err != nil {
			slog.Error("Failed to record notified users", "alertId", a.ID, "error", err)
		}
	}

	slog.Info("Alert dispatched", "alertId", a.ID, "recipients", len(recipients), "sent", len(notified))
	return results, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscriber, msg *Message) RecipientResult {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	if err := d.limiter.Wait(sendCtx); err != nil {
		metrics.NotificationSends.WithLabelValues("rate_limited").Inc()
		return RecipientResult{Subscriber: sub, Outcome: OutcomeRateLimited, Err: err}
	}

	start := time.Now()
	err := d.brk.Execute(sendCtx, func(ctx context.Context) error {
		return d.sender.Send(ctx, sub, msg)
	})
	metrics.NotificationSendDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.NotificationSends.WithLabelValues("success").Inc()
		return RecipientResult{Subscriber: sub, Outcome: OutcomeSent}
	case errors.Is(err, breaker.ErrOpen):
		metrics.NotificationSends.WithLabelValues("short_circuit").Inc()
		return RecipientResult{Subscriber: sub, Outcome: OutcomeShortCircuited, Err: err}
	default:
		metrics.NotificationSends.WithLabelValues("failure").Inc()
		return RecipientResult{Subscriber: sub, Outcome: OutcomeFailed, Err: err}
	}
}
