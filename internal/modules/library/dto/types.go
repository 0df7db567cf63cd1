package dto

import "time"

type AddBookInput struct {
	Title      string
	Author     string
	TotalPages int
}

type BookOutput struct {
	ID          string
	Title       string
	Author      string
	TotalPages  int
	CurrentPage int
	AddedAt     time.Time
	UpdatedAt   time.Time
}

type AdvanceInput struct {
	BookID string
	Page   int
}
