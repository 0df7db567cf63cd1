package out

import (
	"context"
	"time"

	"readsync/internal/modules/stats/domain"
)

type ProfileStore interface {
	Load(ctx context.Context) (domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
}

type AchievementStore interface {
	List(ctx context.Context) ([]domain.Achievement, error)
	HasType(ctx context.Context, achievementType domain.AchievementType) (bool, error)
	Insert(ctx context.Context, achievement domain.Achievement) error
	MarkSeen(ctx context.Context, achievementID string) error
}

// StreakJournal is append-only except for pardon bookkeeping, which drops the
// lost entry the pardon supersedes.
type StreakJournal interface {
	Append(ctx context.Context, event domain.StreakEvent) error
	List(ctx context.Context) ([]domain.StreakEvent, error)
	RemoveLost(ctx context.Context, day string) error
}

// TrackedSession is the slice of a session record the statistics engine needs.
type TrackedSession struct {
	ID        string
	BookID    string
	StartedAt time.Time
	EndedAt   time.Time
	PagesRead int
	Duration  time.Duration
	XP        int
}

// SessionHistory exposes the authoritative session records owned by the
// session module, restricted to those that count toward statistics.
type SessionHistory interface {
	ListTracked(ctx context.Context) ([]TrackedSession, error)
}
