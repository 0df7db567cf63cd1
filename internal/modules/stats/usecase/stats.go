package usecase

import (
	"context"

	"readsync/internal/modules/stats/domain"
	"readsync/internal/modules/stats/dto"
	statsin "readsync/internal/modules/stats/port/in"
	statsout "readsync/internal/modules/stats/port/out"
	"readsync/internal/modules/stats/service"
)

type Interactor struct {
	svc          *service.StatsService
	achievements statsout.AchievementStore
	journal      statsout.StreakJournal
}

func NewInteractor(svc *service.StatsService, achievements statsout.AchievementStore, journal statsout.StreakJournal) *Interactor {
	return &Interactor{svc: svc, achievements: achievements, journal: journal}
}

var (
	_ statsin.Usecase = (*Interactor)(nil)
	_ statsin.Engine  = (*Interactor)(nil)
)

func (i *Interactor) Show(ctx context.Context) (dto.ProfileOutput, []dto.AchievementOutput, error) {
	profile, err := i.svc.Profile(ctx)
	if err != nil {
		return dto.ProfileOutput{}, nil, err
	}
	achievements, err := i.achievements.List(ctx)
	if err != nil {
		return dto.ProfileOutput{}, nil, err
	}
	out := make([]dto.AchievementOutput, 0, len(achievements))
	for _, a := range achievements {
		out = append(out, dto.AchievementOutput{
			ID:         a.ID,
			Type:       string(a.Type),
			UnlockedAt: a.UnlockedAt,
			Seen:       a.Seen,
		})
	}
	return toProfileOutput(profile), out, nil
}

func (i *Interactor) Recompute(ctx context.Context) (dto.ProfileOutput, error) {
	profile, err := i.svc.RecomputeAll(ctx)
	if err != nil {
		return dto.ProfileOutput{}, err
	}
	return toProfileOutput(profile), nil
}

func (i *Interactor) Pardon(ctx context.Context, input dto.PardonInput) (dto.PardonOutput, error) {
	profile, err := i.svc.Pardon(ctx, input.Day)
	if err != nil {
		return dto.PardonOutput{}, err
	}
	return dto.PardonOutput{
		Day:           input.Day,
		CurrentStreak: profile.CurrentStreak,
		LongestStreak: profile.LongestStreak,
	}, nil
}

func (i *Interactor) Journal(ctx context.Context) ([]dto.StreakEventOutput, error) {
	events, err := i.journal.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StreakEventOutput, 0, len(events))
	for _, ev := range events {
		out = append(out, dto.StreakEventOutput{ID: ev.ID, Kind: string(ev.Kind), Day: ev.Day, At: ev.At})
	}
	return out, nil
}

func (i *Interactor) SetStreakPaused(ctx context.Context, paused bool) error {
	return i.svc.SetPaused(ctx, paused)
}

func (i *Interactor) AwardXP(ctx context.Context, delta int) error {
	return i.svc.AwardXP(ctx, delta)
}

func (i *Interactor) RecomputeAll(ctx context.Context) (domain.Profile, error) {
	return i.svc.RecomputeAll(ctx)
}

func (i *Interactor) AbsorbAchievement(ctx context.Context, achievement domain.Achievement) error {
	return i.svc.AbsorbAchievement(ctx, achievement)
}

func (i *Interactor) AbsorbStreakEvent(ctx context.Context, event domain.StreakEvent) error {
	return i.svc.AbsorbStreakEvent(ctx, event)
}

func (i *Interactor) CacheProfile(ctx context.Context, profile domain.Profile) error {
	return i.svc.CacheProfile(ctx, profile)
}

func (i *Interactor) SetPaused(ctx context.Context, paused bool) error {
	return i.svc.SetPaused(ctx, paused)
}

func (i *Interactor) MarkReadingDay(ctx context.Context, day string) {
	i.svc.MarkReadingDay(ctx, day)
}

func (i *Interactor) Snapshot(ctx context.Context) (domain.Profile, []domain.Achievement, []domain.StreakEvent, error) {
	profile, err := i.svc.Profile(ctx)
	if err != nil {
		return domain.Profile{}, nil, nil, err
	}
	achievements, err := i.achievements.List(ctx)
	if err != nil {
		return domain.Profile{}, nil, nil, err
	}
	events, err := i.journal.List(ctx)
	if err != nil {
		return domain.Profile{}, nil, nil, err
	}
	return profile, achievements, events, nil
}

func toProfileOutput(profile domain.Profile) dto.ProfileOutput {
	return dto.ProfileOutput{
		TotalXP:       profile.TotalXP,
		TotalPages:    profile.TotalPages,
		CurrentStreak: profile.CurrentStreak,
		LongestStreak: profile.LongestStreak,
		LastReadDay:   profile.LastReadDay,
		LastPardonAt:  profile.LastPardonAt,
		StreakPaused:  profile.StreakPaused,
		UpdatedAt:     profile.UpdatedAt,
	}
}
