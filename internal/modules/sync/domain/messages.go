package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags a wire envelope. The catalog is additive-only: an older peer
// ignores kinds and fields it does not know.
type Kind string

const (
	KindPageDelta         Kind = "page_delta"
	KindSession           Kind = "session"
	KindActiveSession     Kind = "active_session"
	KindActiveSessionEnd  Kind = "active_session_end"
	KindSessionCompletion Kind = "session_completion"
	KindProfileSettings   Kind = "profile_settings"
	KindProfileStats      Kind = "profile_stats"
	KindAchievement       Kind = "achievement"
	KindStreakEvent       Kind = "streak_event"
)

func (k Kind) Validate() error {
	switch k {
	case KindPageDelta, KindSession, KindActiveSession, KindActiveSessionEnd,
		KindSessionCompletion, KindProfileSettings, KindProfileStats,
		KindAchievement, KindStreakEvent:
		return nil
	default:
		return fmt.Errorf("unknown transfer kind %q", string(k))
	}
}

// Envelope wraps every fact exchanged between peers. SentAt drives clock-skew
// correction on the receiving side. Envelopes are ephemeral and never
// persisted as domain state.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Device  string          `json:"device"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id is required")
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	return nil
}

func NewEnvelope(id string, kind Kind, device string, sentAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{ID: id, Kind: kind, Device: device, SentAt: sentAt, Payload: raw}, nil
}

// PageDelta reports a page turn inside the in-progress session.
type PageDelta struct {
	SessionID string    `json:"session_id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	At        time.Time `json:"at"`
}

// SessionRecord mirrors a completed session on the wire.
type SessionRecord struct {
	ID                string    `json:"id"`
	BookID            string    `json:"book_id"`
	BookTitle         string    `json:"book_title,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	StartPage         int       `json:"start_page"`
	EndPage           int       `json:"end_page"`
	DurationSec       int64     `json:"duration_sec"`
	XP                int       `json:"xp"`
	AutoGenerated     bool      `json:"auto_generated"`
	CountsTowardStats bool      `json:"counts_toward_stats"`
	Imported          bool      `json:"imported"`
}

// ActiveSnapshot mirrors the in-progress session on the wire.
type ActiveSnapshot struct {
	SessionID    string    `json:"session_id"`
	BookID       string    `json:"book_id"`
	StartedAt    time.Time `json:"started_at"`
	StartPage    int       `json:"start_page"`
	CurrentPage  int       `json:"current_page"`
	Paused       bool      `json:"paused"`
	PausedAt     time.Time `json:"paused_at,omitempty"`
	PausedForSec int64     `json:"paused_for_sec"`
	LastUpdated  time.Time `json:"last_updated"`
	Device       string    `json:"device"`
}

// ActiveEnd announces that the in-progress session is over. SessionID may be
// empty on legacy senders; receivers then clear whatever is active.
type ActiveEnd struct {
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// Completion bundles the three sub-facts of finishing a session so they apply
// as one atomic unit: the active id being retired, the completed record, and
// whether the platform live indicator comes down.
type Completion struct {
	ActiveSessionID  string        `json:"active_session_id"`
	Record           SessionRecord `json:"record"`
	EndLiveIndicator bool          `json:"end_live_indicator"`
}

// Validate is the all-or-nothing gate for the composite message.
func (c Completion) Validate(now time.Time) error {
	if c.ActiveSessionID == "" && c.Record.ID == "" {
		return fmt.Errorf("completion carries no session identity")
	}
	r := c.Record
	if r.ID == "" {
		return fmt.Errorf("completion record id is required")
	}
	if r.BookID == "" {
		return fmt.Errorf("completion record book id is required")
	}
	if r.EndedAt.Before(r.StartedAt) {
		return fmt.Errorf("completion end time precedes start time")
	}
	if r.EndedAt.After(now.Add(5 * time.Minute)) {
		return fmt.Errorf("completion end time is in the future")
	}
	if r.StartPage < 0 || r.EndPage < 0 {
		return fmt.Errorf("completion pages must be non-negative")
	}
	if r.EndedAt.Sub(r.StartedAt) > 24*time.Hour {
		return fmt.Errorf("completion duration exceeds 24h")
	}
	return nil
}

// ProfileSettings carries user toggles owned by the capture side.
type ProfileSettings struct {
	StreakPaused bool      `json:"streak_paused"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileStats is the statistics owner's cached projection for the peer.
// Never a source of truth; receivers store it for display only.
type ProfileStats struct {
	TotalXP       int       `json:"total_xp"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	LastReadDay   string    `json:"last_read_day,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AchievementNote announces an unlock.
type AchievementNote struct {
	Type       string    `json:"type"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// StreakEventNote mirrors one streak journal entry.
type StreakEventNote struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	Day  string    `json:"day"`
	At   time.Time `json:"at"`
}

// FullState is the last-write-wins catch-up document replacing the peer's
// entire cached view.
type FullState struct {
	Device       string            `json:"device"`
	PublishedAt  time.Time         `json:"published_at"`
	Books        []BookRecord      `json:"books"`
	Sessions     []SessionRecord   `json:"sessions"`
	Active       *ActiveSnapshot   `json:"active,omitempty"`
	Stats        *ProfileStats     `json:"stats,omitempty"`
	Settings     *ProfileSettings  `json:"settings,omitempty"`
	Achievements []AchievementNote `json:"achievements,omitempty"`
	StreakEvents []StreakEventNote `json:"streak_events,omitempty"`
}

// BookRecord mirrors a catalog entry on the wire.
type BookRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	AddedAt     time.Time `json:"added_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
