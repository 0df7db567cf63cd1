package out

import (
	"context"
	"fmt"
	"sync"

	"readsync/internal/modules/sync/domain"
	syncout "readsync/internal/modules/sync/port/out"
	apperrors "readsync/internal/platform/errors"
)

// LoopbackLink delivers envelopes directly into a peer reconciler in the same
// process. Used by tests and by the two-sides-in-one-binary demo wiring.
// SetFailing simulates the peer being out of range.
type LoopbackLink struct {
	mu           sync.Mutex
	failing      bool
	deliver      func(ctx context.Context, env domain.Envelope) error
	deliverState func(ctx context.Context, state domain.FullState) error
}

var _ syncout.Link = (*LoopbackLink)(nil)

func NewLoopbackLink() *LoopbackLink {
	return &LoopbackLink{}
}

// Connect attaches the receiving side. Until connected every send fails as
// unreachable.
func (l *LoopbackLink) Connect(
	deliver func(ctx context.Context, env domain.Envelope) error,
	deliverState func(ctx context.Context, state domain.FullState) error,
) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliver = deliver
	l.deliverState = deliverState
}

func (l *LoopbackLink) SetFailing(failing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing = failing
}

func (l *LoopbackLink) Send(ctx context.Context, env domain.Envelope) error {
	l.mu.Lock()
	deliver := l.deliver
	failing := l.failing
	l.mu.Unlock()

	if failing || deliver == nil {
		return fmt.Errorf("loopback send: %w", apperrors.ErrPeerUnreachable)
	}
	return deliver(ctx, env)
}

func (l *LoopbackLink) PublishState(ctx context.Context, state domain.FullState) error {
	l.mu.Lock()
	deliver := l.deliverState
	failing := l.failing
	l.mu.Unlock()

	if failing || deliver == nil {
		return fmt.Errorf("loopback publish: %w", apperrors.ErrPeerUnreachable)
	}
	return deliver(ctx, state)
}
