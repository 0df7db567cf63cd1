package in

import (
	"context"

	"readsync/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error)
	AdvancePage(ctx context.Context, input dto.AdvanceInput) (dto.ActiveOutput, error)
	Pause(ctx context.Context) (dto.ActiveOutput, error)
	Resume(ctx context.Context) (dto.ActiveOutput, error)
	Finish(ctx context.Context) (dto.FinishOutput, error)
	Abandon(ctx context.Context) error
	GetActive(ctx context.Context) (dto.ActiveOutput, error)
	CleanupStale(ctx context.Context) (dto.CleanupOutput, error)
}
