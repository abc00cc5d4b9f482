package device

import (
	"context"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

const collectionName = "devices"

// instrumentedRegistry wraps a Registry with metrics and logging
type instrumentedRegistry struct {
	inner Registry
}

// newInstrumentedRegistry creates an instrumented wrapper around a Registry
func newInstrumentedRegistry(inner Registry) Registry {
	return &instrumentedRegistry{inner: inner}
}

func (r *instrumentedRegistry) FindByID(ctx context.Context, id string) (*Device, error) {
	return repository.Instrument(ctx, collectionName, "FindByID", func() (*Device, error) {
		return r.inner.FindByID(ctx, id)
	})
}

func (r *instrumentedRegistry) Insert(ctx context.Context, device *Device) error {
	return repository.InstrumentVoid(ctx, collectionName, "Insert", func() error {
		return r.inner.Insert(ctx, device)
	})
}

func (r *instrumentedRegistry) Update(ctx context.Context, device *Device) error {
	return repository.InstrumentVoid(ctx, collectionName, "Update", func() error {
		return r.inner.Update(ctx, device)
	})
}

func (r *instrumentedRegistry) TouchStatus(ctx context.Context, id string, seenAt time.Time) error {
	return repository.InstrumentVoid(ctx, collectionName, "TouchStatus", func() error {
		return r.inner.TouchStatus(ctx, id, seenAt)
	})
}

func (r *instrumentedRegistry) MarkOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return repository.Instrument(ctx, collectionName, "MarkOfflineBefore", func() (int64, error) {
		return r.inner.MarkOfflineBefore(ctx, cutoff)
	})
}

func (r *instrumentedRegistry) Delete(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collectionName, "Delete", func() error {
		return r.inner.Delete(ctx, id)
	})
}
