package in

import (
	"context"

	"readsync/internal/modules/sync/domain"
	"readsync/internal/modules/sync/dto"
)

type Usecase interface {
	// Apply decodes and reconciles one inbound envelope.
	Apply(ctx context.Context, input dto.ApplyInput) (dto.ApplyOutput, error)
	// ApplyFullState replaces the cached peer view from a catch-up snapshot.
	ApplyFullState(ctx context.Context, state domain.FullState) error
	// SyncNow flushes the durable queue and forces a full-state publish,
	// bypassing the debounce window.
	SyncNow(ctx context.Context) (dto.SyncNowOutput, error)
	Status(ctx context.Context) (dto.StatusOutput, error)
	// Queue lists transfers waiting in the durable outbound buffer.
	Queue(ctx context.Context) ([]dto.PendingOutput, error)
}

// Publisher is how the capture side hands local facts to the transport.
// Implementations apply the escalation policy: immediate first, guaranteed on
// failure. Completion always goes guaranteed.
type Publisher interface {
	ActiveSnapshot(ctx context.Context, snap domain.ActiveSnapshot) error
	PageDelta(ctx context.Context, delta domain.PageDelta) error
	ActiveEnd(ctx context.Context, end domain.ActiveEnd) error
	Completion(ctx context.Context, completion domain.Completion) error
	ProfileSettings(ctx context.Context, settings domain.ProfileSettings) error
}
