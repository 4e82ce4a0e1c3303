package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"diary/internal/domain"
	"diary/internal/repository"
)

// DefaultMaxContentLength bounds entry content, counted in runes.
const DefaultMaxContentLength = 10000

// EntryService coordinates diary entry operations backed by a repository.
type EntryService interface {
	List(ctx context.Context) ([]domain.Entry, error)
	Get(ctx context.Context, id string) (*domain.Entry, error)
	Create(ctx context.Context, content string) (*domain.Entry, error)
	Update(ctx context.Context, id, content string) (*domain.Entry, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type EntryConfig struct {
	MaxContentLength int
	Clock            func() time.Time
}

type entryService struct {
	entries    repository.EntryRepository
	maxContent int
	now        func() time.Time
}

func NewEntryService(entries repository.EntryRepository, cfg EntryConfig) EntryService {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &entryService{
		entries:    entries,
		maxContent: cfg.MaxContentLength,
		now:        cfg.Clock,
	}
}

func (s *entryService) List(ctx context.Context) ([]domain.Entry, error) {
	entries, err := s.entries.List(ctx)
	if err != nil {
		return nil, persistenceErr("list entries", err)
	}
	return entries, nil
}

func (s *entryService) Get(ctx context.Context, id string) (*domain.Entry, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.Get(ctx, id)
	if err != nil {
		return nil, s.lookupErr("get entry", id, err)
	}
	return entry, nil
}

func (s *entryService) Create(ctx context.Context, content string) (*domain.Entry, error) {
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry := &domain.Entry{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, persistenceErr("create entry", err)
	}
	return entry, nil
}

func (s *entryService) Update(ctx context.Context, id, content string) (*domain.Entry, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	entry, err := s.entries.Get(ctx, id)
	if err != nil {
		return nil, s.lookupErr("get entry", id, err)
	}

	now := s.now().UTC()
	// the timestamp must move forward even when the clock has not
	if !now.After(entry.UpdatedAt) {
		now = entry.UpdatedAt.Add(time.Nanosecond)
	}
	entry.Content = content
	entry.UpdatedAt = now

	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, s.lookupErr("update entry", id, err)
	}
	return entry, nil
}

func (s *entryService) Delete(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return s.lookupErr("delete entry", id, err)
	}
	return nil
}

func (s *entryService) Count(ctx context.Context) (int64, error) {
	n, err := s.entries.Count(ctx)
	if err != nil {
		return 0, persistenceErr("count entries", err)
	}
	return n, nil
}

func (s *entryService) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return ErrContentTooLong
	}
	return nil
}

func (s *entryService) lookupErr(op, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return persistenceErr(op, err)
}

func normalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrInvalidEntryID
	}
	return parsed.String(), nil
}
