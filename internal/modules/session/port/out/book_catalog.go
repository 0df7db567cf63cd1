package out

import "context"

// BookInfo is the slice of a catalog entry the session engine needs.
type BookInfo struct {
	ID          string
	Title       string
	TotalPages  int
	CurrentPage int
}

// BookCatalog exposes the library module to session logic: existence checks
// when starting, progress mirroring on page turns.
type BookCatalog interface {
	Info(ctx context.Context, bookID string) (BookInfo, error)
	Advance(ctx context.Context, bookID string, page int) error
}
