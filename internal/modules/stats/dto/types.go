package dto

import "time"

type ProfileOutput struct {
	TotalXP       int
	TotalPages    int
	CurrentStreak int
	LongestStreak int
	LastReadDay   string
	LastPardonAt  time.Time
	StreakPaused  bool
	UpdatedAt     time.Time
}

type AchievementOutput struct {
	ID         string
	Type       string
	UnlockedAt time.Time
	Seen       bool
}

type PardonInput struct {
	Day string
}

type PardonOutput struct {
	Day           string
	CurrentStreak int
	LongestStreak int
}

type StreakEventOutput struct {
	ID   string
	Kind string
	Day  string
	At   time.Time
}
