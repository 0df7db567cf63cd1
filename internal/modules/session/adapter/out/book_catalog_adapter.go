package out

import (
	"context"

	libraryout "readsync/internal/modules/library/port/out"
	sessionout "readsync/internal/modules/session/port/out"
	"readsync/internal/platform/clock"
)

// BookCatalogAdapter bridges the session module to the library book store.
type BookCatalogAdapter struct {
	books libraryout.BookStore
	clock clock.Clock
}

var _ sessionout.BookCatalog = (*BookCatalogAdapter)(nil)

func NewBookCatalogAdapter(books libraryout.BookStore, clk clock.Clock) *BookCatalogAdapter {
	return &BookCatalogAdapter{books: books, clock: clk}
}

func (a *BookCatalogAdapter) Info(ctx context.Context, bookID string) (sessionout.BookInfo, error) {
	book, err := a.books.Get(ctx, bookID)
	if err != nil {
		return sessionout.BookInfo{}, err
	}
	return sessionout.BookInfo{
		ID:          book.ID,
		Title:       book.Title,
		TotalPages:  book.TotalPages,
		CurrentPage: book.CurrentPage,
	}, nil
}

func (a *BookCatalogAdapter) Advance(ctx context.Context, bookID string, page int) error {
	book, err := a.books.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if !book.Advance(page, a.clock.Now()) {
		return nil
	}
	return a.books.Upsert(ctx, book)
}
