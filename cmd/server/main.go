package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"diary/internal/backup"
	"diary/internal/config"
	apphttp "diary/internal/http"
	"diary/internal/metrics"
	"diary/internal/repository/sqlite"
	"diary/internal/service"
	"diary/internal/storage"
	"diary/internal/web"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	entryRepo := sqlite.NewEntryRepository(db)
	if err := entryRepo.Init(ctx); err != nil {
		logger.Fatalf("init entry repository: %v", err)
	}

	entryService := service.NewEntryService(entryRepo, service.EntryConfig{
		MaxContentLength: cfg.Diary.MaxContentLength,
	})
	if n, err := entryService.Count(ctx); err == nil {
		metrics.SetEntriesTotal(n)
		logger.Infof("diary holds %d entries (%s)", n, cfg.Database.Path)
	} else {
		logger.Warnf("count entries: %v", err)
	}

	authService, err := service.NewAuthService(service.AuthConfig{
		Password:  cfg.Auth.Password,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
	})
	if err != nil {
		logger.Fatalf("setup auth: %v", err)
	}
	if authService.Enabled() {
		logger.Info("diary is password protected")
	}

	var store storage.Service
	if cfg.BackupsEnabled() {
		store, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
	}
	backupService := service.NewBackupService(entryService, store, service.BackupConfig{
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
	})

	var scheduler backup.Scheduler
	if cfg.Backup.IntervalMinutes > 0 {
		scheduler = backup.NewScheduler(backup.Config{
			Interval: time.Duration(cfg.Backup.IntervalMinutes) * time.Minute,
			Retain:   cfg.Backup.Retain,
			Logger:   logger,
		}, backupService)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatalf("start backup scheduler: %v", err)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(entryService, authService, backupService, logger)
	handler.RegisterRoutes(router)
	if err := web.Register(router); err != nil {
		logger.Fatalf("register web assets: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on http://%s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("backups go to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
