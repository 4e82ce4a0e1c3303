package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"diary/internal/domain"
	"diary/internal/repository"
)

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_updated_at ON entries(updated_at);
`

type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) repository.EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createEntriesTable); err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}
	return nil
}

func (r *EntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO entries (id, content, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
		entry.ID,
		entry.Content,
		entry.CreatedAt.UTC(),
		entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (r *EntryRepository) Update(ctx context.Context, entry *domain.Entry) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE entries
SET content=?, updated_at=?
WHERE id=?`,
		entry.Content,
		entry.UpdatedAt.UTC(),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("entry update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("entry %s: %w", entry.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("entry delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("entry %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *EntryRepository) Get(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, content, created_at, updated_at
FROM entries
WHERE id=?`,
		id,
	)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
		return nil, err
	}
	return entry, nil
}

// List returns every entry, most recently touched first.
func (r *EntryRepository) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, content, created_at, updated_at
FROM entries
ORDER BY updated_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func (r *EntryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func (r *EntryRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func scanEntry(scanner interface {
	Scan(dest ...any) error
}) (*domain.Entry, error) {
	var (
		entry     domain.Entry
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scanner.Scan(
		&entry.ID,
		&entry.Content,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	entry.CreatedAt = createdAt.UTC()
	entry.UpdatedAt = updatedAt.UTC()
	return &entry, nil
}
