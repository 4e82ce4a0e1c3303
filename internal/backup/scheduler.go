package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"diary/internal/metrics"
	"diary/internal/service"
)

// Scheduler takes diary snapshots on a fixed interval.
type Scheduler interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	// Retain is the number of snapshots kept after each run; zero keeps all.
	Retain  int
	Timeout time.Duration
	Logger  *logrus.Logger
}

type scheduler struct {
	cfg     Config
	backups service.BackupService

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewScheduler(cfg Config, backups service.BackupService) Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &scheduler{
		cfg:     cfg,
		backups: backups,
	}
}

func (s *scheduler) Start(ctx context.Context) error {
	if !s.backups.Enabled() {
		return service.ErrBackupsDisabled
	}
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("backup interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("backup scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)

	s.cfg.Logger.Infof("backup scheduler started, interval: %s", s.cfg.Interval)
	return nil
}

func (s *scheduler) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("backup scheduler stopped")
}

func (s *scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.cfg.Logger.Errorf("scheduled backup: %v", err)
			}
		}
	}
}

// RunOnce takes one snapshot and prunes old ones.
func (s *scheduler) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	backup, err := s.backups.Create(runCtx)
	metrics.RecordBackup("scheduled", err)
	if err != nil {
		return err
	}
	logger := s.cfg.Logger.WithField("location", backup.Location)
	logger.Infof("snapshot of %d entries uploaded", backup.Entries)

	removed, err := s.backups.Prune(runCtx, s.cfg.Retain)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Infof("pruned %d old snapshots", removed)
	}
	return nil
}
