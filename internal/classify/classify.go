// Package classify maps pipeline failures to a redelivery decision.
//
// Only Retry-classified errors propagate to the queue runtime; everything
// else is absorbed so one unprocessable record cannot block a device's
// stream.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

// Action is the three-way outcome of classifying a failure
type Action int

const (
	// ActionContinue absorbs the error and keeps processing
	ActionContinue Action = iota

	// ActionRetry re-throws so the queue redelivers the message
	ActionRetry

	// ActionSkip absorbs the error; the record is permanently unprocessable
	ActionSkip
)

// String returns the action name for logging
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "RETRY"
	case ActionSkip:
		return "SKIP"
	default:
		return "CONTINUE"
	}
}

// retrySubstrings mark transient infrastructure failures
var retrySubstrings = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"dial tcp",
	"i/o timeout",
	"broken pipe",
	"unavailable",
	"transient",
	"too many requests",
}

// skipSubstrings mark permanent, non-retryable failures
var skipSubstrings = []string{
	"not found",
	"invalid",
	"permission",
	"unauthorized",
	"already exists",
	"duplicate",
}

// Classify maps an error to a retry/skip/continue decision.
// Transient, timeout and network-like failures are worth redelivering;
// not-found, invalid-argument, permission and already-exists failures are
// not; anything unrecognized falls through to Continue.
func Classify(err error) Action {
	if err == nil {
		return ActionContinue
	}

	// Transient failures first
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ActionRetry
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return ActionRetry
	}

	// Permanent sentinel errors
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrDuplicateKey) ||
		errors.Is(err, repository.ErrInvalidTransition) ||
		errors.Is(err, mongo.ErrNoDocuments) ||
		mongo.IsDuplicateKeyError(err) {
		return ActionSkip
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retrySubstrings {
		if strings.Contains(msg, s) {
			return ActionRetry
		}
	}
	for _, s := range skipSubstrings {
		if strings.Contains(msg, s) {
			return ActionSkip
		}
	}

	return ActionContinue
}

// Execute runs op and applies classification to its failure. The returned
// error is non-nil only for Retry-classified failures, which the caller
// propagates to the queue runtime as a redelivery signal. Skip and Continue
// outcomes are logged and absorbed. defaultAction replaces Continue for
// callers that want unrecognized failures treated differently.
func Execute(op func() error, logContext string, defaultAction Action) error {
	err := op()
	if err == nil {
		return nil
	}

	action := Classify(err)
	if action == ActionContinue {
		action = defaultAction
	}

	if action == ActionRetry {
		slog.Warn("Transient failure, requesting redelivery",
			"context", logContext,
			"error", err)
		return err
	}

	slog.Warn("Absorbing failure",
		"context", logContext,
		"action", action.String(),
		"error", err)
	return nil
}
