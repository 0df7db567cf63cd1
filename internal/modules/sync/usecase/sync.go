package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"readsync/internal/modules/sync/domain"
	"readsync/internal/modules/sync/dto"
	syncin "readsync/internal/modules/sync/port/in"
	"readsync/internal/modules/sync/service"
	"readsync/internal/platform/clock"
	"readsync/internal/platform/id"
)

type Interactor struct {
	reconciler     *service.Reconciler
	outbox         *service.Outbox
	coordinator    *service.Coordinator
	clock          clock.Clock
	idGen          id.Generator
	deviceTag      string
	statsAuthority bool
}

func NewInteractor(
	reconciler *service.Reconciler,
	outbox *service.Outbox,
	coordinator *service.Coordinator,
	clk clock.Clock,
	idGen id.Generator,
	deviceTag string,
	statsAuthority bool,
) *Interactor {
	return &Interactor{
		reconciler:     reconciler,
		outbox:         outbox,
		coordinator:    coordinator,
		clock:          clk,
		idGen:          idGen,
		deviceTag:      deviceTag,
		statsAuthority: statsAuthority,
	}
}

var (
	_ syncin.Usecase   = (*Interactor)(nil)
	_ syncin.Publisher = (*Interactor)(nil)
)

func (i *Interactor) Apply(ctx context.Context, input dto.ApplyInput) (dto.ApplyOutput, error) {
	var env domain.Envelope
	if err := json.Unmarshal(input.Raw, &env); err != nil {
		return dto.ApplyOutput{}, fmt.Errorf("decode envelope: %w", err)
	}
	result, err := i.reconciler.Apply(ctx, env)
	if err != nil {
		return dto.ApplyOutput{}, err
	}
	return dto.ApplyOutput{
		Kind:    string(result.Kind),
		Applied: result.Applied,
		Reason:  result.Reason,
	}, nil
}

func (i *Interactor) ApplyFullState(ctx context.Context, state domain.FullState) error {
	return i.reconciler.ApplyFullState(ctx, state)
}

func (i *Interactor) SyncNow(ctx context.Context) (dto.SyncNowOutput, error) {
	flushed, err := i.outbox.Flush(ctx)
	if err != nil {
		return dto.SyncNowOutput{Flushed: flushed}, err
	}
	if err := i.coordinator.Flush(ctx); err != nil {
		return dto.SyncNowOutput{Flushed: flushed}, err
	}
	return dto.SyncNowOutput{Flushed: flushed, Published: true}, nil
}

func (i *Interactor) Status(ctx context.Context) (dto.StatusOutput, error) {
	pending, err := i.outbox.PendingLen(ctx)
	if err != nil {
		return dto.StatusOutput{}, err
	}
	return dto.StatusOutput{
		Device:          i.deviceTag,
		StatsAuthority:  i.statsAuthority,
		PendingMessages: pending,
		LastPublishedAt: i.coordinator.LastPublishedAt(),
	}, nil
}

func (i *Interactor) Queue(ctx context.Context) ([]dto.PendingOutput, error) {
	pending, err := i.outbox.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PendingOutput, 0, len(pending))
	for _, env := range pending {
		out = append(out, dto.PendingOutput{
			ID:     env.ID,
			Kind:   string(env.Kind),
			Device: env.Device,
			SentAt: env.SentAt,
		})
	}
	return out, nil
}

func (i *Interactor) ActiveSnapshot(ctx context.Context, snap domain.ActiveSnapshot) error {
	return i.publishImmediate(ctx, domain.KindActiveSession, snap)
}

func (i *Interactor) PageDelta(ctx context.Context, delta domain.PageDelta) error {
	return i.publishImmediate(ctx, domain.KindPageDelta, delta)
}

func (i *Interactor) ActiveEnd(ctx context.Context, end domain.ActiveEnd) error {
	if end.SessionID != "" {
		i.reconciler.MarkEnded(end.SessionID)
	}
	return i.publishImmediate(ctx, domain.KindActiveSessionEnd, end)
}

// Completion always takes the guaranteed channel: losing one means losing a
// reading record, not just a cosmetic mirror update.
func (i *Interactor) Completion(ctx context.Context, completion domain.Completion) error {
	i.reconciler.MarkEnded(completion.ActiveSessionID)
	i.reconciler.MarkEnded(completion.Record.ID)
	env, err := domain.NewEnvelope(i.idGen.New(), domain.KindSessionCompletion, i.deviceTag, i.clock.Now(), completion)
	if err != nil {
		return err
	}
	if err := i.outbox.SendGuaranteed(ctx, env); err != nil {
		return err
	}
	// A completion flushes the full-state export right away instead of riding
	// the debounce window. The record itself is already queued, so a failed
	// export just falls back to the scheduled retry.
	if err := i.coordinator.Flush(ctx); err != nil {
		i.coordinator.Request()
	}
	return nil
}

func (i *Interactor) ProfileSettings(ctx context.Context, settings domain.ProfileSettings) error {
	return i.publishImmediate(ctx, domain.KindProfileSettings, settings)
}

func (i *Interactor) publishImmediate(ctx context.Context, kind domain.Kind, payload any) error {
	env, err := domain.NewEnvelope(i.idGen.New(), kind, i.deviceTag, i.clock.Now(), payload)
	if err != nil {
		return err
	}
	if err := i.outbox.SendImmediate(ctx, env); err != nil {
		return err
	}
	i.coordinator.Request()
	return nil
}
