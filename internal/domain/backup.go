package domain

import "time"

// Backup describes one diary snapshot held in object storage.
type Backup struct {
	Key       string
	Location  string
	Size      int64
	Entries   int
	CreatedAt time.Time
}
