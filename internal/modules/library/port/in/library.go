package in

import (
	"context"

	"readsync/internal/modules/library/dto"
)

type Usecase interface {
	AddBook(ctx context.Context, input dto.AddBookInput) (dto.BookOutput, error)
	GetBook(ctx context.Context, bookID string) (dto.BookOutput, error)
	ListBooks(ctx context.Context) ([]dto.BookOutput, error)
	AdvancePage(ctx context.Context, input dto.AdvanceInput) (dto.BookOutput, error)
	RemoveBook(ctx context.Context, bookID string) error
}
