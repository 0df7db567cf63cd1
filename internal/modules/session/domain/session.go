package domain

import (
	"fmt"
	"time"
)

const SchemaVersion = 1

// MaxSessionDuration is the sanity ceiling for a single reading act.
const MaxSessionDuration = 24 * time.Hour

// FutureSlack is how far into the future an end timestamp may sit before the
// record is considered malformed.
const FutureSlack = 5 * time.Minute

// ActiveSession is the singular in-progress reading act, mirrored across
// devices. At most one instance exists system-wide.
type ActiveSession struct {
	ID          string        `json:"id"`
	BookID      string        `json:"book_id"`
	StartedAt   time.Time     `json:"started_at"`
	StartPage   int           `json:"start_page"`
	CurrentPage int           `json:"current_page"`
	Paused      bool          `json:"paused"`
	PausedAt    time.Time     `json:"paused_at,omitempty"`
	PausedFor   time.Duration `json:"paused_for"`
	LastUpdated time.Time     `json:"last_updated"`
	Device      string        `json:"device"`
}

// ReadingDuration is elapsed wall time minus accumulated pauses.
func (a ActiveSession) ReadingDuration(now time.Time) time.Duration {
	total := now.Sub(a.StartedAt) - a.PausedFor
	if a.Paused && !a.PausedAt.IsZero() {
		total -= now.Sub(a.PausedAt)
	}
	if total < 0 {
		return 0
	}
	return total
}

// ShouldAutoEnd reports whether the session sat idle past the threshold and
// must be retired by staleness cleanup.
func (a ActiveSession) ShouldAutoEnd(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 || a.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(a.LastUpdated) > threshold
}

// MateriallyDiffers reports whether an inbound mirror carries a genuine state
// transition: pause toggled, page moved, or paused duration changed. Used as
// the safety net against clock-skew false negatives in stale-update rejection.
func (a ActiveSession) MateriallyDiffers(other ActiveSession) bool {
	return a.Paused != other.Paused ||
		a.CurrentPage != other.CurrentPage ||
		a.PausedFor != other.PausedFor
}

// Session is a completed reading record. Once XPAwarded is set, further XP for
// this record is credited as a delta only.
type Session struct {
	ID                string        `json:"id"`
	BookID            string        `json:"book_id"`
	StartedAt         time.Time     `json:"started_at"`
	EndedAt           time.Time     `json:"ended_at"`
	StartPage         int           `json:"start_page"`
	EndPage           int           `json:"end_page"`
	Duration          time.Duration `json:"duration"`
	XP                int           `json:"xp"`
	AutoGenerated     bool          `json:"auto_generated"`
	CountsTowardStats bool          `json:"counts_toward_stats"`
	Imported          bool          `json:"imported"`
	XPAwarded         bool          `json:"xp_awarded"`
}

func (s Session) PagesRead() int {
	pages := s.EndPage - s.StartPage
	if pages < 0 {
		return 0
	}
	return pages
}

// Validate is the integrity gate applied before a completed record may enter
// the store. A failing record is discarded whole.
func (s Session) Validate(now time.Time) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.BookID == "" {
		return fmt.Errorf("book id is required")
	}
	if s.EndedAt.Before(s.StartedAt) {
		return fmt.Errorf("end time precedes start time")
	}
	if s.EndedAt.After(now.Add(FutureSlack)) {
		return fmt.Errorf("end time is in the future")
	}
	if s.StartPage < 0 || s.EndPage < 0 {
		return fmt.Errorf("pages must be non-negative")
	}
	if s.EndedAt.Sub(s.StartedAt) > MaxSessionDuration {
		return fmt.Errorf("duration exceeds %s", MaxSessionDuration)
	}
	return nil
}
