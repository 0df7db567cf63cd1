package out

import (
	"context"
	"time"

	"readsync/internal/modules/session/domain"
)

// SessionStore holds completed records. Upsert is idempotent by id.
type SessionStore interface {
	Upsert(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	ListByBook(ctx context.Context, bookID string) ([]domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// ActiveSessionStore holds the singular in-progress session.
type ActiveSessionStore interface {
	SaveActive(ctx context.Context, session domain.ActiveSession) error
	LoadActive(ctx context.Context) (domain.ActiveSession, error)
	ClearActive(ctx context.Context) error
}

// LiveIndicator is the platform status surface. The engine calls it but owns
// no indicator state; Current supports rehydration after relaunch.
type LiveIndicator struct {
	SessionID string    `json:"session_id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	XP        int       `json:"xp"`
	Paused    bool      `json:"paused"`
	StartedAt time.Time `json:"started_at"`
}

type LiveStatus interface {
	Start(ctx context.Context, indicator LiveIndicator) error
	Update(ctx context.Context, page, xp int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	End(ctx context.Context) error
	Current(ctx context.Context) (LiveIndicator, bool, error)
}
