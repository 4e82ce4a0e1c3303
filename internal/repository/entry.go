package repository

import (
	"context"
	"errors"

	"diary/internal/domain"
)

// ErrNotFound is returned when no stored entry matches the requested id.
var ErrNotFound = errors.New("not found")

// EntryRepository exposes persistence operations for diary entries.
type EntryRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, entry *domain.Entry) error
	Update(ctx context.Context, entry *domain.Entry) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Entry, error)
	List(ctx context.Context) ([]domain.Entry, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
