package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"readsync/internal/modules/stats/domain"
	statsout "readsync/internal/modules/stats/port/out"
	"readsync/internal/platform/clock"
	apperrors "readsync/internal/platform/errors"
	"readsync/internal/platform/id"
)

type StatsService struct {
	clock        clock.Clock
	idGen        id.Generator
	profiles     statsout.ProfileStore
	achievements statsout.AchievementStore
	journal      statsout.StreakJournal
	history      statsout.SessionHistory
	log          zerolog.Logger
}

func NewStatsService(
	clk clock.Clock,
	idGen id.Generator,
	profiles statsout.ProfileStore,
	achievements statsout.AchievementStore,
	journal statsout.StreakJournal,
	history statsout.SessionHistory,
	log zerolog.Logger,
) *StatsService {
	return &StatsService{
		clock:        clk,
		idGen:        idGen,
		profiles:     profiles,
		achievements: achievements,
		journal:      journal,
		history:      history,
		log:          log.With().Str("component", "stats").Logger(),
	}
}

func (s *StatsService) Profile(ctx context.Context) (domain.Profile, error) {
	return s.profiles.Load(ctx)
}

// AwardXP credits an incremental delta. The next full recompute re-derives the
// total from source records, so drift here can never become permanent.
func (s *StatsService) AwardXP(ctx context.Context, delta int) error {
	if delta <= 0 {
		return nil
	}
	profile, err := s.profiles.Load(ctx)
	if err != nil {
		return err
	}
	profile.TotalXP += delta
	profile.UpdatedAt = s.clock.Now()
	return s.profiles.Save(ctx, profile)
}

// RecomputeAll re-derives total XP, total pages, and the streak from the
// authoritative session history, then runs achievement unlock checks. The
// previously accumulated total is never trusted.
func (s *StatsService) RecomputeAll(ctx context.Context) (domain.Profile, error) {
	profile, err := s.profiles.Load(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	now := s.clock.Now()

	sessions, err := s.history.ListTracked(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	totalXP := 0
	totalPages := 0
	days := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		totalXP += sess.XP
		totalPages += sess.PagesRead
		days = append(days, domain.DayOf(sess.EndedAt))
	}
	profile.TotalXP = totalXP
	profile.TotalPages = totalPages

	if profile.StreakPaused {
		// Frozen: XP still re-derives, streak values stay as they were.
		profile.UpdatedAt = now
		if err := s.profiles.Save(ctx, profile); err != nil {
			return domain.Profile{}, err
		}
		return profile, nil
	}

	events, err := s.journal.List(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	for _, ev := range events {
		if ev.Kind == domain.StreakEventSaved {
			days = append(days, ev.Day)
		}
	}

	prevCurrent := profile.CurrentStreak
	result := domain.ComputeStreak(days, domain.DayOf(now))
	profile.CurrentStreak = result.Current
	profile.LongestStreak = result.Longest
	if result.LastDay != "" {
		profile.LastReadDay = result.LastDay
	}
	profile.UpdatedAt = now

	s.journalTransition(ctx, prevCurrent, result, now)

	if err := s.profiles.Save(ctx, profile); err != nil {
		return domain.Profile{}, err
	}
	if _, err := s.checkUnlocks(ctx, profile, len(sessions)); err != nil {
		s.log.Warn().Err(err).Msg("achievement check failed")
	}
	return profile, nil
}

func (s *StatsService) journalTransition(ctx context.Context, prevCurrent int, result domain.StreakResult, now time.Time) {
	switch {
	case prevCurrent == 0 && result.Current >= 1:
		s.appendEvent(ctx, domain.StreakEventStarted, result.LastDay, now)
	case prevCurrent > 0 && result.Current == 0:
		s.appendEvent(ctx, domain.StreakEventLost, domain.DayOf(now), now)
	}
}

func (s *StatsService) appendEvent(ctx context.Context, kind domain.StreakEventKind, day string, at time.Time) {
	err := s.journal.Append(ctx, domain.StreakEvent{
		ID:   s.idGen.New(),
		Kind: kind,
		Day:  day,
		At:   at,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("streak journal append failed")
	}
}

// MarkReadingDay journals a reading day so streak history survives even if
// session records are later merged or corrected.
func (s *StatsService) MarkReadingDay(ctx context.Context, day string) {
	s.appendEvent(ctx, domain.StreakEventDay, day, s.clock.Now())
}

// Pardon forgives a missed day inside the grace window, subject to the pardon
// cooldown, and triggers a full streak recompute.
func (s *StatsService) Pardon(ctx context.Context, day string) (domain.Profile, error) {
	profile, err := s.profiles.Load(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	now := s.clock.Now()
	if !domain.PardonableDay(day, now, profile.LastPardonAt) {
		return domain.Profile{}, fmt.Errorf("%w: day %s", apperrors.ErrPardonNotAvailable, day)
	}

	if err := s.journal.RemoveLost(ctx, day); err != nil {
		return domain.Profile{}, err
	}
	if err := s.journal.Append(ctx, domain.StreakEvent{
		ID:   s.idGen.New(),
		Kind: domain.StreakEventSaved,
		Day:  day,
		At:   now,
	}); err != nil {
		return domain.Profile{}, err
	}

	profile.LastPardonAt = now
	profile.UpdatedAt = now
	if err := s.profiles.Save(ctx, profile); err != nil {
		return domain.Profile{}, err
	}
	return s.RecomputeAll(ctx)
}

// checkUnlocks runs every threshold check. The existence test runs twice, once
// against the listing and once against a fresh store query, and each new
// unlock is persisted immediately so a crash between check and persist cannot
// double-award on relaunch.
func (s *StatsService) checkUnlocks(ctx context.Context, profile domain.Profile, sessionCount int) ([]domain.Achievement, error) {
	existing, err := s.achievements.List(ctx)
	if err != nil {
		return nil, err
	}
	have := map[domain.AchievementType]struct{}{}
	for _, a := range existing {
		have[a.Type] = struct{}{}
	}

	candidates := []struct {
		achievementType domain.AchievementType
		unlocked        bool
	}{
		{domain.AchievementFirstSession, sessionCount >= 1},
		{domain.AchievementStreak7, profile.LongestStreak >= 7},
		{domain.AchievementStreak30, profile.LongestStreak >= 30},
		{domain.AchievementXP1000, profile.TotalXP >= 1000},
		{domain.AchievementPages1000, profile.TotalPages >= 1000},
	}

	unlocked := []domain.Achievement{}
	for _, c := range candidates {
		if !c.unlocked {
			continue
		}
		if _, ok := have[c.achievementType]; ok {
			continue
		}
		exists, err := s.achievements.HasType(ctx, c.achievementType)
		if err != nil {
			return unlocked, err
		}
		if exists {
			continue
		}
		achievement := domain.Achievement{
			ID:         s.idGen.New(),
			Type:       c.achievementType,
			UnlockedAt: s.clock.Now(),
		}
		if err := s.achievements.Insert(ctx, achievement); err != nil {
			return unlocked, err
		}
		s.log.Info().Str("type", string(c.achievementType)).Msg("achievement unlocked")
		unlocked = append(unlocked, achievement)
	}
	return unlocked, nil
}

// AbsorbAchievement records a peer-announced unlock unless the type exists.
func (s *StatsService) AbsorbAchievement(ctx context.Context, achievement domain.Achievement) error {
	if err := achievement.Type.Validate(); err != nil {
		return err
	}
	exists, err := s.achievements.HasType(ctx, achievement.Type)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if achievement.ID == "" {
		achievement.ID = s.idGen.New()
	}
	return s.achievements.Insert(ctx, achievement)
}

// AbsorbStreakEvent records a peer journal entry if its id is unseen.
func (s *StatsService) AbsorbStreakEvent(ctx context.Context, event domain.StreakEvent) error {
	if event.ID == "" {
		event.ID = s.idGen.New()
	}
	events, err := s.journal.List(ctx)
	if err != nil {
		return err
	}
	for _, existing := range events {
		if existing.ID == event.ID {
			return nil
		}
		if existing.Kind == event.Kind && existing.Day == event.Day {
			return nil
		}
	}
	return s.journal.Append(ctx, event)
}

// CacheProfile stores the peer's display projection. Only the projection
// fields are taken; StreakPaused, LastPardonAt and TotalPages stay under
// local ownership. Only the non-authoritative side calls this.
func (s *StatsService) CacheProfile(ctx context.Context, profile domain.Profile) error {
	local, err := s.profiles.Load(ctx)
	if err != nil {
		return err
	}
	local.TotalXP = profile.TotalXP
	local.CurrentStreak = profile.CurrentStreak
	local.LongestStreak = profile.LongestStreak
	local.LastReadDay = profile.LastReadDay
	local.UpdatedAt = s.clock.Now()
	return s.profiles.Save(ctx, local)
}

func (s *StatsService) SetPaused(ctx context.Context, paused bool) error {
	profile, err := s.profiles.Load(ctx)
	if err != nil {
		return err
	}
	if profile.StreakPaused == paused {
		return nil
	}
	profile.StreakPaused = paused
	profile.UpdatedAt = s.clock.Now()
	return s.profiles.Save(ctx, profile)
}
