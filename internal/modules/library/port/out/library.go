package out

import (
	"context"

	"readsync/internal/modules/library/domain"
)

type BookStore interface {
	Upsert(ctx context.Context, book domain.Book) error
	Get(ctx context.Context, bookID string) (domain.Book, error)
	List(ctx context.Context) ([]domain.Book, error)
	Delete(ctx context.Context, bookID string) error
}
