package domain

import "time"

// Entry is a single diary note.
type Entry struct {
	ID        string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timestamp returns the creation or last-modified time of the entry.
func (e Entry) Timestamp() time.Time {
	return e.UpdatedAt
}
