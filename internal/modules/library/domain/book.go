package domain

import (
	"fmt"
	"strings"
	"time"
)

const SchemaVersion = 1

// Book is a catalog entry. Sessions reference it by id, never own it.
type Book struct {
	ID          string
	Title       string
	Author      string
	TotalPages  int
	CurrentPage int
	AddedAt     time.Time
	UpdatedAt   time.Time
}

func (b Book) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book id is required")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if b.TotalPages < 0 {
		return fmt.Errorf("total pages must be non-negative")
	}
	if b.CurrentPage < 0 {
		return fmt.Errorf("current page must be non-negative")
	}
	return nil
}

// Advance mirrors the furthest read position. Pages never move backwards and
// never exceed a known total.
func (b *Book) Advance(page int, at time.Time) bool {
	if page <= b.CurrentPage {
		return false
	}
	if b.TotalPages > 0 && page > b.TotalPages {
		page = b.TotalPages
	}
	b.CurrentPage = page
	b.UpdatedAt = at
	return true
}
