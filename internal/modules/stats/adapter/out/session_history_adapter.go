package out

import (
	"context"

	sessionout "readsync/internal/modules/session/port/out"
	statsout "readsync/internal/modules/stats/port/out"
)

// SessionHistoryAdapter reads the session module's authoritative records and
// narrows them to what the statistics engine consumes.
type SessionHistoryAdapter struct {
	sessions sessionout.SessionStore
}

func NewSessionHistoryAdapter(sessions sessionout.SessionStore) *SessionHistoryAdapter {
	return &SessionHistoryAdapter{sessions: sessions}
}

var _ statsout.SessionHistory = (*SessionHistoryAdapter)(nil)

func (a *SessionHistoryAdapter) ListTracked(ctx context.Context) ([]statsout.TrackedSession, error) {
	sessions, err := a.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	tracked := make([]statsout.TrackedSession, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.CountsTowardStats {
			continue
		}
		tracked = append(tracked, statsout.TrackedSession{
			ID:        sess.ID,
			BookID:    sess.BookID,
			StartedAt: sess.StartedAt,
			EndedAt:   sess.EndedAt,
			PagesRead: sess.PagesRead(),
			Duration:  sess.Duration,
			XP:        sess.XP,
		})
	}
	return tracked, nil
}
