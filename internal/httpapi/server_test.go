package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/auth"
	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/scheduler"
)

type fakeScheduler struct {
	started    bool
	triggered  []string
	triggerErr error
}

func (f *fakeScheduler) Start(ctx context.Context) { f.started = true }
func (f *fakeScheduler) Stop()                     { f.started = false }
func (f *fakeScheduler) Status() scheduler.Status {
	return scheduler.Status{Started: f.started}
}
func (f *fakeScheduler) TriggerUser(ctx context.Context, userID string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered = append(f.triggered, userID)
	return nil
}

type fakeStats struct {
	stats db.Stats
	err   error
}

func (f *fakeStats) CorpusStats(ctx context.Context) (db.Stats, error) {
	return f.stats, f.err
}

func newTestServer(t *testing.T, sched *fakeScheduler, stats *fakeStats, tokenHash string) *Server {
	t.Helper()
	cfg := config.NewManager(&config.Config{APITokenHash: tokenHash}, "", zerolog.Nop())
	return NewServer(sched, stats, cfg, zerolog.Nop(), Options{})
}

func doRequest(t *testing.T, server *Server, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.buildEcho().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func testTokenHash(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashToken("test-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	return hash
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeScheduler{}, &fakeStats{}, "")

	rec := doRequest(t, server, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := &fakeStats{stats: db.Stats{Mentions: 42, Topics: 5, Issues: 3, LastCycleAt: &now}}
	server := newTestServer(t, &fakeScheduler{}, stats, "")

	rec := doRequest(t, server, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	if data["mentions"] != float64(42) {
		t.Fatalf("expected 42 mentions, got %v", data["mentions"])
	}
}

func TestStatsEndpointFailure(t *testing.T) {
	server := newTestServer(t, &fakeScheduler{}, &fakeStats{err: fmt.Errorf("db down")}, "")

	rec := doRequest(t, server, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", body)
	}
}

func TestTriggerCycleRequiresToken(t *testing.T) {
	sched := &fakeScheduler{}
	server := newTestServer(t, sched, &fakeStats{}, testTokenHash(t))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cycles/user-1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/cycles/user-1", "wrong-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if len(sched.triggered) != 0 {
		t.Fatalf("expected no dispatch without valid token, got %v", sched.triggered)
	}
}

func TestTriggerCycleDisabledWithoutConfiguredToken(t *testing.T) {
	server := newTestServer(t, &fakeScheduler{}, &fakeStats{}, "")

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cycles/user-1", "anything")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no token is configured, got %d", rec.Code)
	}
}

func TestTriggerCycleDispatches(t *testing.T) {
	sched := &fakeScheduler{}
	server := newTestServer(t, sched, &fakeStats{}, testTokenHash(t))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cycles/user-1", "test-token")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(sched.triggered) != 1 || sched.triggered[0] != "user-1" {
		t.Fatalf("expected user-1 dispatched, got %v", sched.triggered)
	}
}

func TestTriggerCycleConflict(t *testing.T) {
	sched := &fakeScheduler{triggerErr: fmt.Errorf("cycle already running for user user-1")}
	server := newTestServer(t, sched, &fakeStats{}, testTokenHash(t))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cycles/user-1", "test-token")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSchedulerStartAndStop(t *testing.T) {
	sched := &fakeScheduler{}
	server := newTestServer(t, sched, &fakeStats{}, testTokenHash(t))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/scheduler/start", "test-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !sched.started {
		t.Fatal("expected scheduler to be started")
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/scheduler/stop", "test-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sched.started {
		t.Fatal("expected scheduler to be stopped")
	}

	// Status stays public.
	rec = doRequest(t, server, http.MethodGet, "/api/v1/scheduler", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for public status, got %d", rec.Code)
	}
}
