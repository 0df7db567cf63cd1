package usecase

import (
	"context"

	"readsync/internal/modules/library/domain"
	"readsync/internal/modules/library/dto"
	libraryin "readsync/internal/modules/library/port/in"
	libraryout "readsync/internal/modules/library/port/out"
	"readsync/internal/modules/library/service"
)

type Interactor struct {
	svc   *service.BookService
	store libraryout.BookStore
}

func NewInteractor(svc *service.BookService, store libraryout.BookStore) libraryin.Usecase {
	return &Interactor{svc: svc, store: store}
}

func (i *Interactor) AddBook(ctx context.Context, input dto.AddBookInput) (dto.BookOutput, error) {
	book, err := i.svc.Add(ctx, input.Title, input.Author, input.TotalPages)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toOutput(book), nil
}

func (i *Interactor) GetBook(ctx context.Context, bookID string) (dto.BookOutput, error) {
	book, err := i.store.Get(ctx, bookID)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toOutput(book), nil
}

func (i *Interactor) ListBooks(ctx context.Context) ([]dto.BookOutput, error) {
	books, err := i.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BookOutput, 0, len(books))
	for _, book := range books {
		out = append(out, toOutput(book))
	}
	return out, nil
}

func (i *Interactor) AdvancePage(ctx context.Context, input dto.AdvanceInput) (dto.BookOutput, error) {
	book, err := i.svc.Advance(ctx, input.BookID, input.Page)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toOutput(book), nil
}

func (i *Interactor) RemoveBook(ctx context.Context, bookID string) error {
	return i.store.Delete(ctx, bookID)
}

func toOutput(book domain.Book) dto.BookOutput {
	return dto.BookOutput{
		ID:          book.ID,
		Title:       book.Title,
		Author:      book.Author,
		TotalPages:  book.TotalPages,
		CurrentPage: book.CurrentPage,
		AddedAt:     book.AddedAt,
		UpdatedAt:   book.UpdatedAt,
	}
}
