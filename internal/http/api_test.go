package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diary/internal/domain"
	apphttp "diary/internal/http"
	"diary/internal/metrics"
	"diary/internal/repository/sqlite"
	"diary/internal/service"
	"diary/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	logs   *bytes.Buffer
}

type serverOptions struct {
	password string
	store    storage.Service
	entries  service.EntryService
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	entries := opts.entries
	if entries == nil {
		db, err := sqlite.Open(filepath.Join(t.TempDir(), "diary.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		repo := sqlite.NewEntryRepository(db)
		require.NoError(t, repo.Init(context.Background()))
		entries = service.NewEntryService(repo, service.EntryConfig{MaxContentLength: 50})
	}

	secret := ""
	if opts.password != "" {
		secret = "test-secret"
	}
	auth, err := service.NewAuthService(service.AuthConfig{Password: opts.password, JWTSecret: secret})
	require.NoError(t, err)

	backups := service.NewBackupService(entries, opts.store, service.BackupConfig{Bucket: "diary-test"})

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetLevel(logrus.DebugLevel)

	router := gin.New()
	apphttp.NewHandler(entries, auth, backups, logger).RegisterRoutes(router)
	return &testServer{router: router, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) create(t *testing.T, content string) apphttp.EntryResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/entries", "", map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[apphttp.EntryResponse](t, rec)
}

func (s *testServer) list(t *testing.T) []apphttp.EntryResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/entries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[[]apphttp.EntryResponse](t, rec)
}

func TestCreateThenListContainsEntry(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	created := srv.create(t, "Hello")
	assert.Equal(t, "Hello", created.Content)
	assert.Equal(t, created.UpdatedAt, created.Timestamp)
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	entries := srv.list(t)
	matches := 0
	for _, e := range entries {
		if e.Content == "Hello" {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
}

func TestListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rec := srv.do(t, http.MethodGet, "/api/entries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListNewestFirst(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	a := srv.create(t, "A")
	b := srv.create(t, "B")

	entries := srv.list(t)
	require.Len(t, entries, 2)
	assert.Equal(t, b.ID, entries[0].ID)
	assert.Equal(t, a.ID, entries[1].ID)
}

func TestGetRoundTrip(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	created := srv.create(t, "line one\nline two ✍️")

	rec := srv.do(t, http.MethodGet, "/api/entries/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[apphttp.EntryResponse](t, rec)
	assert.Equal(t, created, got)
}

func TestUpdatePreservesIDAndChangesTimestamp(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	created := srv.create(t, "draft")

	rec := srv.do(t, http.MethodPut, "/api/entries/"+created.ID, "", map[string]string{"content": "final"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[apphttp.EntryResponse](t, rec)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "final", updated.Content)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.NotEqual(t, created.Timestamp, updated.Timestamp)

	before, err := time.Parse(time.RFC3339Nano, created.Timestamp)
	require.NoError(t, err)
	after, err := time.Parse(time.RFC3339Nano, updated.Timestamp)
	require.NoError(t, err)
	assert.True(t, after.After(before))
}

func TestUpdateMissingEntry(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rec := srv.do(t, http.MethodPut, "/api/entries/"+uuid.NewString(), "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"entry not found"}`, rec.Body.String())
}

func TestDeleteMissingLeavesStoreUnchanged(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.create(t, "keep me")
	before := srv.list(t)

	rec := srv.do(t, http.MethodDelete, "/api/entries/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, before, srv.list(t))
}

func TestDeleteEntry(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	created := srv.create(t, "short lived")

	rec := srv.do(t, http.MethodDelete, "/api/entries/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"deleted":%q}`, created.ID), rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/entries/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountMatchesCreatesMinusDeletes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	var live []string
	creates, deletes := 0, 0
	for i := 0; i < 10; i++ {
		live = append(live, srv.create(t, fmt.Sprintf("entry %d", i)).ID)
		creates++

		if i%2 == 1 {
			rec := srv.do(t, http.MethodDelete, "/api/entries/"+live[0], "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			deletes++
			live = live[1:]
		}
		// failed deletes never change the count
		rec := srv.do(t, http.MethodDelete, "/api/entries/"+uuid.NewString(), "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		assert.Len(t, srv.list(t), creates-deletes)
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	created := srv.create(t, "valid")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   string
	}{
		{"blank content", http.MethodPost, "/api/entries", map[string]string{"content": "   "}, "content is required"},
		{"missing content", http.MethodPost, "/api/entries", map[string]string{}, "content is required"},
		{"too long", http.MethodPost, "/api/entries", map[string]string{"content": strings.Repeat("a", 51)}, "content is too long"},
		{"malformed json", http.MethodPost, "/api/entries", "{", "invalid request body"},
		{"bad id on get", http.MethodGet, "/api/entries/42", nil, "invalid entry id"},
		{"bad id on delete", http.MethodDelete, "/api/entries/nope", nil, "invalid entry id"},
		{"blank update", http.MethodPut, "/api/entries/" + created.ID, map[string]string{"content": ""}, "content is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[map[string]string](t, rec)["error"])
		})
	}

	entries := srv.list(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "valid", entries[0].Content)
}

// failingEntries reports a store failure from every operation.
type failingEntries struct{ err error }

func (f failingEntries) fail() error { return &service.PersistenceError{Op: "test", Err: f.err} }

func (f failingEntries) List(context.Context) ([]domain.Entry, error) { return nil, f.fail() }
func (f failingEntries) Get(context.Context, string) (*domain.Entry, error) {
	return nil, f.fail()
}
func (f failingEntries) Create(context.Context, string) (*domain.Entry, error) {
	return nil, f.fail()
}
func (f failingEntries) Update(context.Context, string, string) (*domain.Entry, error) {
	return nil, f.fail()
}
func (f failingEntries) Delete(context.Context, string) error { return f.fail() }
func (f failingEntries) Count(context.Context) (int64, error) { return 0, f.fail() }

func TestPersistenceErrorsAreMasked(t *testing.T) {
	srv := newTestServer(t, serverOptions{entries: failingEntries{err: errors.New("disk I/O error at /secret/path")}})

	rec := srv.do(t, http.MethodGet, "/api/entries", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, srv.logs.String(), "disk I/O error", "detail is logged")

	rec = srv.do(t, http.MethodPost, "/api/entries", "", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = srv.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.create(t, "one")
	srv.create(t, "two")

	rec := srv.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","entries":2}`, rec.Body.String())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesTotal))
}

func TestAuthLock(t *testing.T) {
	srv := newTestServer(t, serverOptions{password: "open sesame"})

	rec := srv.do(t, http.MethodGet, "/api/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = srv.do(t, http.MethodGet, "/api/entries", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/session", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/session", "", map[string]string{"password": "open sesame"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode[map[string]string](t, rec)["token"]
	require.NotEmpty(t, token)

	rec = srv.do(t, http.MethodPost, "/api/entries", token, map[string]string{"content": "secret thoughts"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/entries", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestSessionWithoutLock(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rec := srv.do(t, http.MethodPost, "/api/session", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingStore struct {
	keys []string
}

func (s *recordingStore) PutObject(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.keys = append(s.keys, opts.Key)
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (s *recordingStore) ListObjects(context.Context, string, string) ([]storage.ObjectInfo, error) {
	out := make([]storage.ObjectInfo, len(s.keys))
	for i, k := range s.keys {
		out[i] = storage.ObjectInfo{Key: k, Size: 10}
	}
	return out, nil
}

func (s *recordingStore) DeleteObjects(context.Context, string, []string) error { return nil }

func TestBackups(t *testing.T) {
	store := &recordingStore{}
	srv := newTestServer(t, serverOptions{store: store})
	srv.create(t, "first")
	srv.create(t, "second")

	rec := srv.do(t, http.MethodPost, "/api/backups", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	backup := decode[apphttp.BackupResponse](t, rec)
	require.NotNil(t, backup.Entries)
	assert.Equal(t, 2, *backup.Entries)
	assert.True(t, strings.HasPrefix(backup.Location, "s3://diary-test/"))

	rec = srv.do(t, http.MethodGet, "/api/backups", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]apphttp.BackupResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, backup.Key, list[0].Key)
}

func TestBackupsDisabled(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rec := srv.do(t, http.MethodPost, "/api/backups", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestMetricsAndLogs(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/entries/:id", "404")
	before := testutil.ToFloat64(counter)

	rec := srv.do(t, http.MethodGet, "/api/entries/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Contains(t, srv.logs.String(), "status=404")
	assert.Contains(t, srv.logs.String(), "level=warning")

	rec = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diary_entry_operations_total")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rec := srv.do(t, http.MethodOptions, "/api/entries", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
