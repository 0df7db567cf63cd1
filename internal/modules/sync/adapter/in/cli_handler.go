package in

import (
	"context"
	"encoding/json"

	syncout "readsync/internal/modules/sync/adapter/out"
	"readsync/internal/modules/sync/dto"
	syncin "readsync/internal/modules/sync/port/in"
)

type CLIHandler struct {
	usecase syncin.Usecase
}

func NewCLIHandler(usecase syncin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) SyncNow(ctx context.Context) (dto.SyncNowOutput, error) {
	return h.usecase.SyncNow(ctx)
}

func (h CLIHandler) Status(ctx context.Context) (dto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) Queue(ctx context.Context) ([]dto.PendingOutput, error) {
	return h.usecase.Queue(ctx)
}

// Ingest drains a transfer drop directory through the reconciler. Envelopes
// apply first so the trailing full-state document wins where they overlap.
func (h CLIHandler) Ingest(ctx context.Context, dir string) ([]dto.ApplyOutput, error) {
	envelopes, state, err := syncout.ReadInbox(dir)
	if err != nil {
		return nil, err
	}
	results := make([]dto.ApplyOutput, 0, len(envelopes))
	for _, env := range envelopes {
		raw, err := json.Marshal(env)
		if err != nil {
			return results, err
		}
		out, err := h.usecase.Apply(ctx, dto.ApplyInput{Raw: raw})
		if err != nil {
			return results, err
		}
		results = append(results, out)
	}
	if state != nil {
		if err := h.usecase.ApplyFullState(ctx, *state); err != nil {
			return results, err
		}
	}
	return results, nil
}
