package in

import (
	"context"

	librarydto "readsync/internal/modules/library/dto"
	libraryin "readsync/internal/modules/library/port/in"
)

type CLIHandler struct {
	usecase libraryin.Usecase
}

func NewCLIHandler(usecase libraryin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) AddBook(ctx context.Context, title, author string, totalPages int) (librarydto.BookOutput, error) {
	return h.usecase.AddBook(ctx, librarydto.AddBookInput{Title: title, Author: author, TotalPages: totalPages})
}

func (h CLIHandler) ListBooks(ctx context.Context) ([]librarydto.BookOutput, error) {
	return h.usecase.ListBooks(ctx)
}

func (h CLIHandler) AdvancePage(ctx context.Context, bookID string, page int) (librarydto.BookOutput, error) {
	return h.usecase.AdvancePage(ctx, librarydto.AdvanceInput{BookID: bookID, Page: page})
}

func (h CLIHandler) RemoveBook(ctx context.Context, bookID string) error {
	return h.usecase.RemoveBook(ctx, bookID)
}
