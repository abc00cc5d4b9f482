// Package breaker provides circuit-breaker protection for outbound calls.
//
// A degraded notification channel must not stall the ingestion path: once
// the failure rate crosses the threshold the breaker fails fast, then
// probes recovery after the reset timeout.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
)

// ErrOpen is returned when the breaker short-circuits a call without
// invoking the wrapped operation.
var ErrOpen = errors.New("circuit breaker open")

// ErrTimeout is returned when the wrapped operation exceeds the per-call
// timeout. It counts as a failure toward the trip threshold.
var ErrTimeout = errors.New("operation timed out")

// Config holds circuit breaker settings
type Config struct {
	// Name identifies the breaker in logs and metrics
	Name string

	// Timeout is the hard per-call timeout
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker (0..1)
	FailureThreshold float64

	// MinimumCalls is the request volume required before the ratio is evaluated
	MinimumCalls uint32

	// ResetTimeout is how long the breaker stays open before probing
	ResetTimeout time.Duration

	// HalfOpenCalls is the number of consecutive probe successes that close
	// the breaker; a single probe failure reopens it
	HalfOpenCalls uint32
}

// DefaultConfig returns settings suited to the notification send path
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.5,
		MinimumCalls:     5,
		ResetTimeout:     30 * time.Second,
		HalfOpenCalls:    2,
	}
}

// Breaker wraps a single downstream operation with circuit-breaker
// semantics and a per-call timeout.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// New creates a breaker from config
func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenCalls,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumCalls {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			var stateValue float64
			switch to {
			case gobreaker.StateClosed:
				stateValue = float64(metrics.CircuitBreakerClosed)
			case gobreaker.StateOpen:
				stateValue = float64(metrics.CircuitBreakerOpen)
				metrics.BreakerTrips.WithLabelValues(name).Inc()
			case gobreaker.StateHalfOpen:
				stateValue = float64(metrics.CircuitBreakerHalfOpen)
			}
			metrics.BreakerState.WithLabelValues(name).Set(stateValue)
		},
	}

	return &Breaker{
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

// Execute runs fn through the breaker. While open, calls fail immediately
// with ErrOpen and fn is never invoked. Each call races fn against the
// configured timeout; a timeout counts as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.runWithTimeout(ctx, fn)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// runWithTimeout races fn against the per-call timeout
func (b *Breaker) runWithTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return callCtx.Err()
	}
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
