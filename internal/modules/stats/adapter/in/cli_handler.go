package in

import (
	"context"

	statsdto "readsync/internal/modules/stats/dto"
	statsin "readsync/internal/modules/stats/port/in"
)

type CLIHandler struct {
	usecase statsin.Usecase
}

func NewCLIHandler(usecase statsin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Show(ctx context.Context) (statsdto.ProfileOutput, []statsdto.AchievementOutput, error) {
	return h.usecase.Show(ctx)
}

func (h CLIHandler) Recompute(ctx context.Context) (statsdto.ProfileOutput, error) {
	return h.usecase.Recompute(ctx)
}

func (h CLIHandler) Pardon(ctx context.Context, day string) (statsdto.PardonOutput, error) {
	return h.usecase.Pardon(ctx, statsdto.PardonInput{Day: day})
}

func (h CLIHandler) Journal(ctx context.Context) ([]statsdto.StreakEventOutput, error) {
	return h.usecase.Journal(ctx)
}

func (h CLIHandler) SetStreakPaused(ctx context.Context, paused bool) error {
	return h.usecase.SetStreakPaused(ctx, paused)
}
