package in

import (
	"context"

	"readsync/internal/modules/session/dto"
	sessionin "readsync/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, bookID string, page int) (dto.StartOutput, error) {
	return h.usecase.Start(ctx, dto.StartInput{BookID: bookID, Page: page})
}

func (h CLIHandler) AdvancePage(ctx context.Context, page int) (dto.ActiveOutput, error) {
	return h.usecase.AdvancePage(ctx, dto.AdvanceInput{Page: page})
}

func (h CLIHandler) Pause(ctx context.Context) (dto.ActiveOutput, error) {
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) (dto.ActiveOutput, error) {
	return h.usecase.Resume(ctx)
}

func (h CLIHandler) Finish(ctx context.Context) (dto.FinishOutput, error) {
	return h.usecase.Finish(ctx)
}

func (h CLIHandler) Abandon(ctx context.Context) error {
	return h.usecase.Abandon(ctx)
}

func (h CLIHandler) Status(ctx context.Context) (dto.ActiveOutput, error) {
	return h.usecase.GetActive(ctx)
}

func (h CLIHandler) CleanupStale(ctx context.Context) (dto.CleanupOutput, error) {
	return h.usecase.CleanupStale(ctx)
}
