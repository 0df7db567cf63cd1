package service

import (
	"context"

	"github.com/rs/zerolog"

	"readsync/internal/modules/sync/domain"
	syncout "readsync/internal/modules/sync/port/out"
	"readsync/internal/platform/metrics"
)

// Outbox implements the two-tier delivery policy. Immediate sends fall back
// to the durable queue on failure so no fact is silently lost; transport
// errors are never surfaced to the caller as fatal.
type Outbox struct {
	link  syncout.Link
	queue syncout.PendingQueue
	log   zerolog.Logger
}

func NewOutbox(link syncout.Link, queue syncout.PendingQueue, log zerolog.Logger) *Outbox {
	return &Outbox{
		link:  link,
		queue: queue,
		log:   log.With().Str("component", "outbox").Logger(),
	}
}

// SendImmediate attempts best-effort delivery and escalates to the guaranteed
// channel on failure.
func (o *Outbox) SendImmediate(ctx context.Context, env domain.Envelope) error {
	if err := o.link.Send(ctx, env); err != nil {
		o.log.Warn().Err(err).Str("kind", string(env.Kind)).Msg("immediate send failed, queuing")
		metrics.SendFallbacks.Inc()
		return o.enqueue(ctx, env)
	}
	return nil
}

// SendGuaranteed stores the envelope durably first, then opportunistically
// flushes. Order across distinct guaranteed sends is not promised.
func (o *Outbox) SendGuaranteed(ctx context.Context, env domain.Envelope) error {
	if err := o.enqueue(ctx, env); err != nil {
		return err
	}
	if _, err := o.Flush(ctx); err != nil {
		o.log.Debug().Err(err).Msg("opportunistic flush failed, will retry later")
	}
	return nil
}

// Flush drains the pending queue through the link, stopping at the first
// failure so remaining entries stay durable.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	pending, err := o.queue.List(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, env := range pending {
		if err := o.link.Send(ctx, env); err != nil {
			o.updateDepth(ctx)
			return sent, err
		}
		if err := o.queue.Remove(ctx, env.ID); err != nil {
			return sent, err
		}
		sent++
	}
	o.updateDepth(ctx)
	return sent, nil
}

// PublishState pushes the last-write-wins catch-up document. A failure is
// logged only: the next debounced export supersedes it anyway.
func (o *Outbox) PublishState(ctx context.Context, state domain.FullState) error {
	if err := o.link.PublishState(ctx, state); err != nil {
		o.log.Warn().Err(err).Msg("full-state publish failed")
		return err
	}
	metrics.FullStateExports.Inc()
	return nil
}

func (o *Outbox) PendingLen(ctx context.Context) (int, error) {
	return o.queue.Len(ctx)
}

func (o *Outbox) Pending(ctx context.Context) ([]domain.Envelope, error) {
	return o.queue.List(ctx)
}

func (o *Outbox) enqueue(ctx context.Context, env domain.Envelope) error {
	if err := o.queue.Enqueue(ctx, env); err != nil {
		o.log.Error().Err(err).Str("kind", string(env.Kind)).Msg("durable enqueue failed")
		return err
	}
	o.updateDepth(ctx)
	return nil
}

func (o *Outbox) updateDepth(ctx context.Context) {
	if n, err := o.queue.Len(ctx); err == nil {
		metrics.PendingQueueDepth.Set(float64(n))
	}
}
