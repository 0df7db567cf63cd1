package domain

import (
	"fmt"
	"time"
)

const SchemaVersion = 1

// Profile is the singleton aggregate of derived statistics. It is a cached
// projection over the session history and must always be re-derivable from
// scratch.
type Profile struct {
	TotalXP       int       `json:"total_xp"`
	TotalPages    int       `json:"total_pages"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	LastReadDay   string    `json:"last_read_day,omitempty"`
	LastPardonAt  time.Time `json:"last_pardon_at,omitempty"`
	StreakPaused  bool      `json:"streak_paused"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AchievementType string

const (
	AchievementFirstSession AchievementType = "first_session"
	AchievementStreak7      AchievementType = "streak_7"
	AchievementStreak30     AchievementType = "streak_30"
	AchievementXP1000       AchievementType = "xp_1000"
	AchievementPages1000    AchievementType = "pages_1000"
)

func (t AchievementType) Validate() error {
	switch t {
	case AchievementFirstSession, AchievementStreak7, AchievementStreak30,
		AchievementXP1000, AchievementPages1000:
		return nil
	default:
		return fmt.Errorf("unknown achievement type %q", string(t))
	}
}

// Achievement unlocks are idempotent: exactly one instance per type may exist.
type Achievement struct {
	ID         string          `json:"id"`
	Type       AchievementType `json:"type"`
	UnlockedAt time.Time       `json:"unlocked_at"`
	Seen       bool            `json:"seen"`
}

type StreakEventKind string

const (
	StreakEventDay     StreakEventKind = "day"
	StreakEventStarted StreakEventKind = "started"
	StreakEventLost    StreakEventKind = "lost"
	StreakEventSaved   StreakEventKind = "saved"
)

// StreakEvent is one append-only journal entry. "saved" entries mark pardoned
// days and count as present for run continuity.
type StreakEvent struct {
	ID   string          `json:"id"`
	Kind StreakEventKind `json:"kind"`
	Day  string          `json:"day"`
	At   time.Time       `json:"at"`
}
