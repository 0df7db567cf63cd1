package service

import (
	"context"
	"fmt"
	"strings"

	"readsync/internal/modules/library/domain"
	libraryout "readsync/internal/modules/library/port/out"
	"readsync/internal/platform/clock"
	"readsync/internal/platform/id"
)

type BookService struct {
	clock clock.Clock
	idGen id.Generator
	store libraryout.BookStore
}

func NewBookService(clock clock.Clock, idGen id.Generator, store libraryout.BookStore) *BookService {
	return &BookService{clock: clock, idGen: idGen, store: store}
}

func (s *BookService) Add(ctx context.Context, title, author string, totalPages int) (domain.Book, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Book{}, fmt.Errorf("title is required")
	}
	now := s.clock.Now()
	book := domain.Book{
		ID:         s.idGen.New(),
		Title:      strings.TrimSpace(title),
		Author:     strings.TrimSpace(author),
		TotalPages: totalPages,
		AddedAt:    now,
		UpdatedAt:  now,
	}
	if err := book.Validate(); err != nil {
		return domain.Book{}, err
	}
	if err := s.store.Upsert(ctx, book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

func (s *BookService) Advance(ctx context.Context, bookID string, page int) (domain.Book, error) {
	book, err := s.store.Get(ctx, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if !book.Advance(page, s.clock.Now()) {
		return book, nil
	}
	if err := s.store.Upsert(ctx, book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}
