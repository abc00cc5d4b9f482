package notification

import (
	"context"
)

// SubscriberRepository defines the interface for subscriber data access.
// All implementations must be wrapped with instrumentation.
type SubscriberRepository interface {
	FindByID(ctx context.Context, id string) (*Subscriber, error)
	FindEnabled(ctx context.Context) ([]*Subscriber, error)
	Insert(ctx context.Context, sub *Subscriber) error
	Update(ctx context.Context, sub *Subscriber) error
	Delete(ctx context.Context, id string) error
}
