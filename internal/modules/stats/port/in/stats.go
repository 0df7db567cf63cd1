package in

import (
	"context"

	"readsync/internal/modules/stats/domain"
	"readsync/internal/modules/stats/dto"
)

type Usecase interface {
	Show(ctx context.Context) (dto.ProfileOutput, []dto.AchievementOutput, error)
	// Recompute re-derives every aggregate from the session history.
	Recompute(ctx context.Context) (dto.ProfileOutput, error)
	Pardon(ctx context.Context, input dto.PardonInput) (dto.PardonOutput, error)
	Journal(ctx context.Context) ([]dto.StreakEventOutput, error)
	SetStreakPaused(ctx context.Context, paused bool) error
}

// Engine is the narrower surface the reconciler drives after each mutation
// batch that can affect aggregates.
type Engine interface {
	// AwardXP credits an incremental delta ahead of the next full recompute.
	AwardXP(ctx context.Context, delta int) error
	// RecomputeAll re-derives XP, streak, and achievement unlocks.
	RecomputeAll(ctx context.Context) (domain.Profile, error)
	// AbsorbAchievement records a peer-announced unlock idempotently.
	AbsorbAchievement(ctx context.Context, achievement domain.Achievement) error
	// AbsorbStreakEvent records a peer journal entry if unseen.
	AbsorbStreakEvent(ctx context.Context, event domain.StreakEvent) error
	// CacheProfile overwrites the cached projection on the non-authoritative side.
	CacheProfile(ctx context.Context, profile domain.Profile) error
	// SetPaused flips the streak freeze flag.
	SetPaused(ctx context.Context, paused bool) error
	// MarkReadingDay journals a day with reading so streak history survives
	// later record merges.
	MarkReadingDay(ctx context.Context, day string)
	// Snapshot returns the current profile, unlocks, and journal for export.
	Snapshot(ctx context.Context) (domain.Profile, []domain.Achievement, []domain.StreakEvent, error)
}
