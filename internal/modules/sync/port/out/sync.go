package out

import (
	"context"

	"readsync/internal/modules/sync/domain"
)

// Link is the raw channel to the single logical peer. Send is best-effort:
// it either delivers now or fails now.
type Link interface {
	Send(ctx context.Context, env domain.Envelope) error
	PublishState(ctx context.Context, state domain.FullState) error
}

// PendingQueue is the durable store-and-forward buffer behind the guaranteed
// channel. Delivery order across entries is not guaranteed.
type PendingQueue interface {
	Enqueue(ctx context.Context, env domain.Envelope) error
	List(ctx context.Context) ([]domain.Envelope, error)
	Remove(ctx context.Context, envelopeID string) error
	Len(ctx context.Context) (int, error)
}

// ChangeListener is the presentation collaborator: it is poked after each
// successful reconciliation batch and pulls fresh projections itself.
type ChangeListener interface {
	DataChanged()
}

// NopListener satisfies ChangeListener when no presentation layer is attached.
type NopListener struct{}

func (NopListener) DataChanged() {}
