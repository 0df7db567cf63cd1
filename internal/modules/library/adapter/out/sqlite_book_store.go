package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"readsync/internal/modules/library/domain"
	libraryout "readsync/internal/modules/library/port/out"
	apperrors "readsync/internal/platform/errors"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

type SQLiteBookStore struct {
	db *sql.DB
}

func NewSQLiteBookStore(dbPath string) (*SQLiteBookStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteBookStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// NewSQLiteBookStoreWith reuses an already-open handle so every store shares
// one connection pool.
func NewSQLiteBookStoreWith(db *sql.DB) (*SQLiteBookStore, error) {
	store := &SQLiteBookStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

var _ libraryout.BookStore = (*SQLiteBookStore)(nil)

func (s *SQLiteBookStore) DB() *sql.DB { return s.db }

func (s *SQLiteBookStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT,
  total_pages INTEGER NOT NULL,
  current_page INTEGER NOT NULL,
  added_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

func (s *SQLiteBookStore) Upsert(ctx context.Context, book domain.Book) error {
	const stmt = `
INSERT INTO books (id, title, author, total_pages, current_page, added_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  author=excluded.author,
  total_pages=excluded.total_pages,
  current_page=excluded.current_page,
  updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		book.ID,
		book.Title,
		book.Author,
		book.TotalPages,
		book.CurrentPage,
		book.AddedAt.UTC().Format(timeLayout),
		book.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

func (s *SQLiteBookStore) Get(ctx context.Context, bookID string) (domain.Book, error) {
	const stmt = `SELECT id, title, author, total_pages, current_page, added_at, updated_at FROM books WHERE id = ?`
	row := s.db.QueryRowContext(ctx, stmt, bookID)
	book, err := scanBook(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, apperrors.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *SQLiteBookStore) List(ctx context.Context) ([]domain.Book, error) {
	const stmt = `SELECT id, title, author, total_pages, current_page, added_at, updated_at FROM books ORDER BY added_at`
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		book, err := scanBook(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (s *SQLiteBookStore) Delete(ctx context.Context, bookID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func scanBook(scan func(dest ...any) error) (domain.Book, error) {
	var book domain.Book
	var addedAt, updatedAt string
	if err := scan(&book.ID, &book.Title, &book.Author, &book.TotalPages, &book.CurrentPage, &addedAt, &updatedAt); err != nil {
		return domain.Book{}, err
	}
	book.AddedAt, _ = time.Parse(timeLayout, addedAt)
	book.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return book, nil
}
