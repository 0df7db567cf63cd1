package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readsync/internal/modules/stats/domain"
	statsout "readsync/internal/modules/stats/port/out"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteProfileStore keeps the singleton profile row plus achievements in the
// shared database.
type SQLiteProfileStore struct {
	db *sql.DB
}

func NewSQLiteProfileStore(db *sql.DB) (*SQLiteProfileStore, error) {
	store := &SQLiteProfileStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

var (
	_ statsout.ProfileStore     = (*SQLiteProfileStore)(nil)
	_ statsout.AchievementStore = (*SQLiteProfileStore)(nil)
)

func (s *SQLiteProfileStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS profile (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  total_xp INTEGER NOT NULL,
  total_pages INTEGER NOT NULL,
  current_streak INTEGER NOT NULL,
  longest_streak INTEGER NOT NULL,
  last_read_day TEXT,
  last_pardon_at TEXT,
  streak_paused INTEGER NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS achievements (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL UNIQUE,
  unlocked_at TEXT NOT NULL,
  seen INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create stats tables: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) Load(ctx context.Context) (domain.Profile, error) {
	const stmt = `SELECT total_xp, total_pages, current_streak, longest_streak, last_read_day, last_pardon_at, streak_paused, updated_at FROM profile WHERE id = 1`
	row := s.db.QueryRowContext(ctx, stmt)

	var profile domain.Profile
	var lastReadDay, lastPardonAt sql.NullString
	var paused int
	var updatedAt string
	err := row.Scan(&profile.TotalXP, &profile.TotalPages, &profile.CurrentStreak, &profile.LongestStreak, &lastReadDay, &lastPardonAt, &paused, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, nil
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	profile.LastReadDay = lastReadDay.String
	if lastPardonAt.Valid && lastPardonAt.String != "" {
		profile.LastPardonAt, _ = time.Parse(timeLayout, lastPardonAt.String)
	}
	profile.StreakPaused = paused != 0
	profile.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return profile, nil
}

func (s *SQLiteProfileStore) Save(ctx context.Context, profile domain.Profile) error {
	const stmt = `
INSERT INTO profile (id, total_xp, total_pages, current_streak, longest_streak, last_read_day, last_pardon_at, streak_paused, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  total_xp=excluded.total_xp,
  total_pages=excluded.total_pages,
  current_streak=excluded.current_streak,
  longest_streak=excluded.longest_streak,
  last_read_day=excluded.last_read_day,
  last_pardon_at=excluded.last_pardon_at,
  streak_paused=excluded.streak_paused,
  updated_at=excluded.updated_at;
`
	pardonAt := ""
	if !profile.LastPardonAt.IsZero() {
		pardonAt = profile.LastPardonAt.UTC().Format(timeLayout)
	}
	paused := 0
	if profile.StreakPaused {
		paused = 1
	}
	_, err := s.db.ExecContext(ctx, stmt,
		profile.TotalXP,
		profile.TotalPages,
		profile.CurrentStreak,
		profile.LongestStreak,
		profile.LastReadDay,
		pardonAt,
		paused,
		profile.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) List(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, unlocked_at, seen FROM achievements ORDER BY unlocked_at`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	achievements := []domain.Achievement{}
	for rows.Next() {
		var a domain.Achievement
		var achievementType, unlockedAt string
		var seen int
		if err := rows.Scan(&a.ID, &achievementType, &unlockedAt, &seen); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.Type = domain.AchievementType(achievementType)
		a.UnlockedAt, _ = time.Parse(timeLayout, unlockedAt)
		a.Seen = seen != 0
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

func (s *SQLiteProfileStore) HasType(ctx context.Context, achievementType domain.AchievementType) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM achievements WHERE type = ?`, string(achievementType))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count achievements: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteProfileStore) Insert(ctx context.Context, achievement domain.Achievement) error {
	const stmt = `INSERT INTO achievements (id, type, unlocked_at, seen) VALUES (?, ?, ?, ?) ON CONFLICT(type) DO NOTHING`
	seen := 0
	if achievement.Seen {
		seen = 1
	}
	_, err := s.db.ExecContext(ctx, stmt, achievement.ID, string(achievement.Type), achievement.UnlockedAt.UTC().Format(timeLayout), seen)
	if err != nil {
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (s *SQLiteProfileStore) MarkSeen(ctx context.Context, achievementID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE achievements SET seen = 1 WHERE id = ?`, achievementID); err != nil {
		return fmt.Errorf("mark achievement seen: %w", err)
	}
	return nil
}
