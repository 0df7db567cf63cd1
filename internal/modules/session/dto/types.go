package dto

import "time"

type StartInput struct {
	BookID string
	Page   int
}

type StartOutput struct {
	SessionID string
	BookID    string
	StartedAt time.Time
}

type AdvanceInput struct {
	Page int
}

type FinishOutput struct {
	SessionID string
	BookID    string
	Duration  time.Duration
	PagesRead int
	XP        int
}

type ActiveOutput struct {
	SessionID   string
	BookID      string
	BookTitle   string
	StartedAt   time.Time
	StartPage   int
	CurrentPage int
	Paused      bool
	PausedFor   time.Duration
	LastUpdated time.Time
	Device      string
}

type CleanupOutput struct {
	Ended             []string
	IndicatorTorn     bool
	IndicatorRestored bool
}
