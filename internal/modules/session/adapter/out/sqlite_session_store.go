package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readsync/internal/modules/session/domain"
	sessionout "readsync/internal/modules/session/port/out"
	apperrors "readsync/internal/platform/errors"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore reuses an already-open handle so every store shares
// one connection pool.
func NewSQLiteSessionStore(db *sql.DB) (*SQLiteSessionStore, error) {
	store := &SQLiteSessionStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

var _ sessionout.SessionStore = (*SQLiteSessionStore)(nil)

func (s *SQLiteSessionStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  start_page INTEGER NOT NULL,
  end_page INTEGER NOT NULL,
  duration_sec INTEGER NOT NULL,
  xp INTEGER NOT NULL,
  auto_generated INTEGER NOT NULL DEFAULT 0,
  counts_toward_stats INTEGER NOT NULL DEFAULT 1,
  imported INTEGER NOT NULL DEFAULT 0,
  xp_awarded INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_book ON sessions(book_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Upsert(ctx context.Context, session domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, book_id, started_at, ended_at, start_page, end_page, duration_sec, xp, auto_generated, counts_toward_stats, imported, xp_awarded)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  book_id=excluded.book_id,
  started_at=excluded.started_at,
  ended_at=excluded.ended_at,
  start_page=excluded.start_page,
  end_page=excluded.end_page,
  duration_sec=excluded.duration_sec,
  xp=excluded.xp,
  auto_generated=excluded.auto_generated,
  counts_toward_stats=excluded.counts_toward_stats,
  imported=excluded.imported,
  xp_awarded=excluded.xp_awarded;
`
	_, err := s.db.ExecContext(ctx, stmt,
		session.ID,
		session.BookID,
		session.StartedAt.UTC().Format(timeLayout),
		session.EndedAt.UTC().Format(timeLayout),
		session.StartPage,
		session.EndPage,
		int64(session.Duration/time.Second),
		session.XP,
		boolToInt(session.AutoGenerated),
		boolToInt(session.CountsTowardStats),
		boolToInt(session.Imported),
		boolToInt(session.XPAwarded),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, selectSessions+` WHERE id = ?`, sessionID)
	session, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *SQLiteSessionStore) List(ctx context.Context) ([]domain.Session, error) {
	return s.query(ctx, selectSessions+` ORDER BY started_at`)
}

func (s *SQLiteSessionStore) ListByBook(ctx context.Context, bookID string) ([]domain.Session, error) {
	return s.query(ctx, selectSessions+` WHERE book_id = ? ORDER BY started_at`, bookID)
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

const selectSessions = `SELECT id, book_id, started_at, ended_at, start_page, end_page, duration_sec, xp, auto_generated, counts_toward_stats, imported, xp_awarded FROM sessions`

func (s *SQLiteSessionStore) query(ctx context.Context, stmt string, args ...any) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(scan func(dest ...any) error) (domain.Session, error) {
	var session domain.Session
	var startedAt, endedAt string
	var durationSec int64
	var autoGenerated, counts, imported, awarded int
	err := scan(
		&session.ID, &session.BookID, &startedAt, &endedAt,
		&session.StartPage, &session.EndPage, &durationSec, &session.XP,
		&autoGenerated, &counts, &imported, &awarded,
	)
	if err != nil {
		return domain.Session{}, err
	}
	session.StartedAt, _ = time.Parse(timeLayout, startedAt)
	session.EndedAt, _ = time.Parse(timeLayout, endedAt)
	session.Duration = time.Duration(durationSec) * time.Second
	session.AutoGenerated = autoGenerated != 0
	session.CountsTowardStats = counts != 0
	session.Imported = imported != 0
	session.XPAwarded = awarded != 0
	return session, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
