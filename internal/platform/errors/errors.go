package apperrors

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrNoActiveSession      = errors.New("no active session")
	ErrActiveSessionExists  = errors.New("active session already exists")
	ErrSessionEnded         = errors.New("session already ended")
	ErrStaleUpdate          = errors.New("stale update")
	ErrInvalidTransfer      = errors.New("invalid transfer payload")
	ErrPardonNotAvailable   = errors.New("pardon not available")
	ErrStreakPaused         = errors.New("streak recomputation is paused")
	ErrPeerUnreachable      = errors.New("peer unreachable")
	ErrAchievementExists    = errors.New("achievement already unlocked")
	ErrDuplicateStreakEvent = errors.New("duplicate streak event")
)
