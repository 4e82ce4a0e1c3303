package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"diary/internal/domain"
	"diary/internal/storage"
)

const (
	backupKeyPrefix  = "diary-"
	backupKeySuffix  = ".json"
	backupTimeLayout = "20060102T150405.000000000Z"
)

// BackupService writes diary snapshots to object storage.
type BackupService interface {
	Enabled() bool
	Create(ctx context.Context) (*domain.Backup, error)
	List(ctx context.Context) ([]domain.Backup, error)
	Prune(ctx context.Context, keep int) (int, error)
}

type BackupConfig struct {
	Bucket    string
	KeyPrefix string
	Clock     func() time.Time
}

type backupService struct {
	entries EntryService
	store   storage.Service
	bucket  string
	prefix  string
	now     func() time.Time
}

type snapshot struct {
	CreatedAt time.Time       `json:"created_at"`
	Count     int             `json:"count"`
	Entries   []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBackupService returns a service that is disabled when store is nil or
// no bucket is configured.
func NewBackupService(entries EntryService, store storage.Service, cfg BackupConfig) BackupService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &backupService{
		entries: entries,
		store:   store,
		bucket:  strings.TrimSpace(cfg.Bucket),
		prefix:  strings.Trim(cfg.KeyPrefix, "/"),
		now:     cfg.Clock,
	}
}

func (s *backupService) Enabled() bool {
	return s.store != nil && s.bucket != ""
}

func (s *backupService) Create(ctx context.Context) (*domain.Backup, error) {
	if !s.Enabled() {
		return nil, ErrBackupsDisabled
	}

	entries, err := s.entries.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	snap := snapshot{
		CreatedAt: now,
		Count:     len(entries),
		Entries:   make([]snapshotEntry, len(entries)),
	}
	for i, e := range entries {
		snap.Entries[i] = snapshotEntry{
			ID:        e.ID,
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		}
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	key := s.objectKey(now)
	location, err := s.store.PutObject(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	return &domain.Backup{
		Key:       key,
		Location:  location,
		Size:      int64(len(body)),
		Entries:   len(entries),
		CreatedAt: now,
	}, nil
}

// List returns stored snapshots, newest first.
func (s *backupService) List(ctx context.Context) ([]domain.Backup, error) {
	if !s.Enabled() {
		return nil, ErrBackupsDisabled
	}

	objects, err := s.store.ListObjects(ctx, s.bucket, s.listPrefix())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	backups := make([]domain.Backup, 0, len(objects))
	for _, obj := range objects {
		createdAt, ok := parseBackupKey(obj.Key)
		if !ok {
			continue
		}
		backups = append(backups, domain.Backup{
			Key:       obj.Key,
			Location:  fmt.Sprintf("s3://%s/%s", s.bucket, obj.Key),
			Size:      obj.Size,
			CreatedAt: createdAt,
		})
	}
	slices.SortFunc(backups, func(a, b domain.Backup) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return backups, nil
}

// Prune deletes all but the newest keep snapshots and reports how many were removed.
func (s *backupService) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	stale := backups[keep:]
	keys := make([]string, len(stale))
	for i := range stale {
		keys[i] = stale[i].Key
	}
	if err := s.store.DeleteObjects(ctx, s.bucket, keys); err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return len(keys), nil
}

func (s *backupService) objectKey(at time.Time) string {
	name := backupKeyPrefix + at.Format(backupTimeLayout) + backupKeySuffix
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *backupService) listPrefix() string {
	if s.prefix == "" {
		return backupKeyPrefix
	}
	return s.prefix + "/" + backupKeyPrefix
}

func parseBackupKey(key string) (time.Time, bool) {
	name := path.Base(key)
	if !strings.HasPrefix(name, backupKeyPrefix) || !strings.HasSuffix(name, backupKeySuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupKeyPrefix), backupKeySuffix)
	t, err := time.Parse(backupTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
