package digest

import (
	"context"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

const collectionName = "alert_digests"

// instrumentedRepository wraps a Repository with metrics and logging
type instrumentedRepository struct {
	inner Repository
}

func newInstrumentedRepository(inner Repository) Repository {
	return &instrumentedRepository{inner: inner}
}

func (r *instrumentedRepository) FindByID(ctx context.Context, id string) (*AlertDigest, error) {
	return repository.Instrument(ctx, collectionName, "FindByID", func() (*AlertDigest, error) {
		return r.inner.FindByID(ctx, id)
	})
}

func (r *instrumentedRepository) Record(ctx context.Context, recipient string, category Category, day string, item DigestItem) (*AlertDigest, error) {
	return repository.Instrument(ctx, collectionName, "Record", func() (*AlertDigest, error) {
		return r.inner.Record(ctx, recipient, category, day, item)
	})
}

func (r *instrumentedRepository) FindEligible(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]*AlertDigest, error) {
	return repository.Instrument(ctx, collectionName, "FindEligible", func() ([]*AlertDigest, error) {
		return r.inner.FindEligible(ctx, now, maxAttempts, limit)
	})
}

func (r *instrumentedRepository) MarkSent(ctx context.Context, id string, cooldownUntil time.Time) error {
	return repository.InstrumentVoid(ctx, collectionName, "MarkSent", func() error {
		return r.inner.MarkSent(ctx, id, cooldownUntil)
	})
}

func (r *instrumentedRepository) MarkFailed(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collectionName, "MarkFailed", func() error {
		return r.inner.MarkFailed(ctx, id)
	})
}

func (r *instrumentedRepository) Acknowledge(ctx context.Context, id, token string) (*AlertDigest, error) {
	return repository.Instrument(ctx, collectionName, "Acknowledge", func() (*AlertDigest, error) {
		return r.inner.Acknowledge(ctx, id, token)
	})
}
