package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/orchestrator"
	"announcement-radar/internal/storage/memory"
)

type fakeRunner struct {
	err    error
	calls  int
	ctxErr error
}

func (f *fakeRunner) RunCycle(ctx context.Context) (*domain.CycleResult, error) {
	f.calls++
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CycleResult{RunID: "run-1", Inserted: 2}, nil
}

func (f *fakeRunner) Status() orchestrator.Status {
	return orchestrator.Status{Cycles: int64(f.calls)}
}

func seedAnnouncements(t *testing.T) *memory.AnnouncementStore {
	t.Helper()
	store := memory.NewAnnouncementStore()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []*domain.Announcement{
		{Exchange: "binance", Title: "Binance Will List Foo (FOO)", Type: domain.CategoryNewListing, URL: "u1", PublishTime: base},
		{Exchange: "okx", Title: "OKX to list perpetual for BAR", Type: domain.CategoryFutures, URL: "u2", PublishTime: base.Add(time.Hour)},
		{Exchange: "bitget", Title: "Bitget will delist BAZ", Type: domain.CategoryDelisting, URL: "u3", PublishTime: base.Add(2 * time.Hour)},
	}
	for _, a := range rows {
		_, inserted, err := store.CreateIfAbsent(context.Background(), a)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	return store
}

func newTestRouter(t *testing.T, runner *fakeRunner, hub *Hub) *Router {
	t.Helper()
	return NewRouter(Options{
		Runner:        runner,
		Announcements: seedAnnouncements(t),
		Hub:           hub,
	})
}

func do(t *testing.T, r *Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.Engine().ServeHTTP(w, req)
	return w
}

func TestTrigger(t *testing.T) {
	runner := &fakeRunner{}
	w := do(t, newTestRouter(t, runner, nil), http.MethodPost, "/api/v1/trigger")

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1, runner.calls)
}

func TestTrigger_ClientDisconnectDoesNotCancelCycle(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(t, runner, nil)

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trigger", nil).WithContext(reqCtx)
	r.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, runner.calls)
	assert.NoError(t, runner.ctxErr)
}

func TestTrigger_Failure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	w := do(t, newTestRouter(t, runner, nil), http.MethodPost, "/api/v1/trigger")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"poll cycle failed"}`, w.Body.String())
}

func TestAnnouncements(t *testing.T) {
	r := newTestRouter(t, &fakeRunner{}, nil)

	w := do(t, r, http.MethodGet, "/api/v1/announcements")
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Announcements []AnnouncementResponse `json:"announcements"`
		Count         int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Equal(t, 3, all.Count)
	assert.Equal(t, "u3", all.Announcements[0].URL, "newest first")

	w = do(t, r, http.MethodGet, "/api/v1/announcements?type=futures&limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Equal(t, 1, all.Count)
	assert.Equal(t, "okx", all.Announcements[0].Exchange)

	w = do(t, r, http.MethodGet, "/api/v1/announcements?type=memes")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/announcements?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndStatus(t *testing.T) {
	r := NewRouter(Options{
		Runner:        &fakeRunner{},
		Announcements: memory.NewAnnouncementStore(),
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})

	w := do(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), healthStatusHealthy)

	w = do(t, r, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)

	degraded := NewRouter(Options{
		Runner:        &fakeRunner{},
		Announcements: memory.NewAnnouncementStore(),
		HealthChecks: map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	w = do(t, degraded, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, newTestRouter(t, &fakeRunner{}, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStream(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(newTestRouter(t, &fakeRunner{}, hub).Engine())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(&domain.Announcement{
		ID:       9,
		Exchange: "binance",
		Title:    "Binance Will List Foo (FOO)",
		Type:     domain.CategoryNewListing,
		URL:      "u9",
		Tokens:   []domain.TokenCandidate{{Name: "Foo", Symbol: "FOO"}},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "announcement", msg.Type)
	assert.Equal(t, int64(9), msg.Payload.ID)
	assert.Equal(t, "FOO", msg.Payload.Tokens[0].Symbol)
}
