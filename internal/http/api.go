package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"diary/internal/domain"
	"diary/internal/metrics"
	"diary/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	entries service.EntryService
	auth    service.AuthService
	backups service.BackupService
	logger  *logrus.Logger
}

func NewHandler(entries service.EntryService, auth service.AuthService, backups service.BackupService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		entries: entries,
		auth:    auth,
		backups: backups,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), metricsMiddleware(), corsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/session", h.createSession)

		entries := api.Group("/entries", h.requireAuth())
		entries.GET("", h.listEntries)
		entries.POST("", h.createEntry)
		entries.GET("/:id", h.getEntry)
		entries.PUT("/:id", h.updateEntry)
		entries.DELETE("/:id", h.deleteEntry)

		backups := api.Group("/backups", h.requireAuth())
		backups.GET("", h.listBackups)
		backups.POST("", h.createBackup)
	}
}

type entryRequest struct {
	Content string `json:"content"`
}

type sessionRequest struct {
	Password string `json:"password"`
}

func (h *Handler) health(c *gin.Context) {
	n, err := h.entries.Count(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	metrics.SetEntriesTotal(n)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": n})
}

func (h *Handler) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, err := h.auth.Login(req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listEntries(c *gin.Context) {
	entries, err := h.entries.List(c.Request.Context())
	metrics.RecordEntryOperation("list", operationResult(err))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]EntryResponse, len(entries))
	for i := range entries {
		resp[i] = entryToResponse(entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordEntryOperation("create", metrics.ResultInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := h.entries.Create(c.Request.Context(), req.Content)
	metrics.RecordEntryOperation("create", operationResult(err))
	if err != nil {
		h.writeError(c, err)
		return
	}
	metrics.EntriesTotal.Inc()

	c.JSON(http.StatusCreated, entryToResponse(*entry))
}

func (h *Handler) getEntry(c *gin.Context) {
	entry, err := h.entries.Get(c.Request.Context(), c.Param("id"))
	metrics.RecordEntryOperation("get", operationResult(err))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entryToResponse(*entry))
}

func (h *Handler) updateEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordEntryOperation("update", metrics.ResultInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := h.entries.Update(c.Request.Context(), c.Param("id"), req.Content)
	metrics.RecordEntryOperation("update", operationResult(err))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entryToResponse(*entry))
}

func (h *Handler) deleteEntry(c *gin.Context) {
	id := c.Param("id")
	err := h.entries.Delete(c.Request.Context(), id)
	metrics.RecordEntryOperation("delete", operationResult(err))
	if err != nil {
		h.writeError(c, err)
		return
	}
	metrics.EntriesTotal.Dec()

	c.JSON(http.StatusOK, gin.H{"deleted": strings.ToLower(strings.TrimSpace(id))})
}

func (h *Handler) listBackups(c *gin.Context) {
	backups, err := h.backups.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]BackupResponse, len(backups))
	for i := range backups {
		resp[i] = backupToResponse(backups[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createBackup(c *gin.Context) {
	backup, err := h.backups.Create(c.Request.Context())
	if !errors.Is(err, service.ErrBackupsDisabled) {
		metrics.RecordBackup("manual", err)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"location": backup.Location,
		"entries":  backup.Entries,
	}).Info("snapshot created")

	c.JSON(http.StatusCreated, backupToResponse(*backup))
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised is
// logged and reported as an internal error without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrEntryNotFound.Error()})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAuthDisabled), errors.Is(err, service.ErrBackupsDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func operationResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, service.ErrValidation):
		return metrics.ResultInvalid
	case errors.Is(err, service.ErrEntryNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}

type EntryResponse struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type BackupResponse struct {
	Key       string `json:"key"`
	Location  string `json:"location"`
	Size      int64  `json:"size"`
	Entries   *int   `json:"entries,omitempty"`
	CreatedAt string `json:"created_at"`
}

func entryToResponse(entry domain.Entry) EntryResponse {
	return EntryResponse{
		ID:        entry.ID,
		Content:   entry.Content,
		Timestamp: entry.Timestamp().UTC().Format(time.RFC3339Nano),
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func backupToResponse(backup domain.Backup) BackupResponse {
	resp := BackupResponse{
		Key:       backup.Key,
		Location:  backup.Location,
		Size:      backup.Size,
		CreatedAt: backup.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if backup.Entries > 0 {
		n := backup.Entries
		resp.Entries = &n
	}
	return resp
}
