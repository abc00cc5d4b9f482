package notification

import (
	"context"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

const collectionName = "subscribers"

// instrumentedSubscriberRepository wraps a SubscriberRepository with
// metrics and logging
type instrumentedSubscriberRepository struct {
	inner SubscriberRepository
}

func newInstrumentedSubscriberRepository(inner SubscriberRepository) SubscriberRepository {
	return &instrumentedSubscriberRepository{inner: inner}
}

func (r *instrumentedSubscriberRepository) FindByID(ctx context.Context, id string) (*Subscriber, error) {
	return repository.Instrument(ctx, collectionName, "FindByID", func() (*Subscriber, error) {
		return r.inner.FindByID(ctx, id)
	})
}

func (r *instrumentedSubscriberRepository) FindEnabled(ctx context.Context) ([]*Subscriber, error) {
	return repository.Instrument(ctx, collectionName, "FindEnabled", func() ([]*Subscriber, error) {
		return r.inner.FindEnabled(ctx)
	})
}

func (r *instrumentedSubscriberRepository) Insert(ctx context.Context, sub *Subscriber) error {
	return repository.InstrumentVoid(ctx, collectionName, "Insert", func() error {
		return r.inner.Insert(ctx, sub)
	})
}

func (r *instrumentedSubscriberRepository) Update(ctx context.Context, sub *Subscriber) error {
	return repository.InstrumentVoid(ctx, collectionName, "Update", func() error {
		return r.inner.Update(ctx, sub)
	})
}

func (r *instrumentedSubscriberRepository) Delete(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collectionName, "Delete", func() error {
		return r.inner.Delete(ctx, id)
	})
}
