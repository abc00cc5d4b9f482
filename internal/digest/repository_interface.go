package digest

import (
	"context"
	"time"
)

// Repository defines the interface for digest data access.
// All implementations must be wrapped with instrumentation.
type Repository interface {
	FindByID(ctx context.Context, id string) (*AlertDigest, error)

	// Record appends an occurrence to the digest for (recipient,
	// category, day), creating it if needed. Beyond MaxItems only the
	// occurrence counter grows.
	Record(ctx context.Context, recipient string, category Category, day string, item DigestItem) (*AlertDigest, error)

	// FindEligible returns digests due for sending, oldest first
	FindEligible(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]*AlertDigest, error)

	// MarkSent records a successful delivery and starts the cooldown
	MarkSent(ctx context.Context, id string, cooldownUntil time.Time) error

	// MarkFailed counts a failed delivery attempt
	MarkFailed(ctx context.Context, id string) error

	// Acknowledge marks the digest acknowledged when the token matches.
	// Acknowledgement is terminal.
	Acknowledge(ctx context.Context, id, token string) (*AlertDigest, error)
}
