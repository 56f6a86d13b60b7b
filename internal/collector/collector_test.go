package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegistryResolvesActiveSources(t *testing.T) {
	t.Parallel()

	registry := NewRegistry("feed, Feed ,rss")
	if err := registry.Register(NewFeedSource("http://feed.local", "")); err != nil {
		t.Fatalf("register: %v", err)
	}

	source, err := registry.Source("FEED")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source.Name() != "feed" {
		t.Fatalf("expected feed source, got %q", source.Name())
	}

	// "rss" never registered: active set contains feed only.
	active := registry.ActiveSources()
	if len(active) != 1 || active[0].Name() != "feed" {
		t.Fatalf("expected single active feed source, got %d", len(active))
	}

	if _, err := registry.Source("rss"); err == nil {
		t.Fatal("expected error for unregistered source")
	}
}

func TestFeedSourceCollect(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mentions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "user-1" {
			t.Errorf("expected user_id=user-1, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("expected bearer token, got %q", got)
		}
		items := []map[string]any{
			{
				"external_id":  "x-1",
				"platform":     "twitter",
				"text":         "fuel price protest downtown",
				"language":     "en",
				"published_at": "2026-03-01T10:00:00Z",
			},
			{
				"external_id":  "n-1",
				"platform":     "news",
				"title":        "Fuel subsidy report",
				"published_at": "not-a-timestamp",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(items); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer server.Close()

	source := NewFeedSource(server.URL, "sekrit")
	records, err := source.Collect(context.Background(), Query{
		UserID: "user-1",
		Since:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Limit:  50,
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Source != "feed" || first.ExternalID != "x-1" || first.Text != "fuel price protest downtown" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed published_at, got %v", first.PublishedAt)
	}
	if len(first.Raw) == 0 {
		t.Fatal("expected original payload to be retained")
	}

	// Unparsable timestamps degrade to nil rather than failing the batch.
	if records[1].PublishedAt != nil {
		t.Fatalf("expected nil published_at for malformed timestamp, got %v", records[1].PublishedAt)
	}
}

func TestFeedSourceCollectErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewFeedSource(server.URL, "")
	if _, err := source.Collect(context.Background(), Query{UserID: "user-1"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFeedSourceRequiresUserID(t *testing.T) {
	t.Parallel()

	source := NewFeedSource("http://feed.local", "")
	if _, err := source.Collect(context.Background(), Query{}); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestNewRegistryFromEnvStartsEmpty(t *testing.T) {
	t.Setenv(FeedEndpointEnvVar, "http://feed.local")
	t.Setenv(SourcesEnvVar, "feed")

	registry := NewRegistryFromEnv()
	if names := registry.SourceNames(); len(names) != 0 {
		t.Fatalf("expected no sources before explicit registration, got %v", names)
	}
	if _, err := registry.Source(DefaultSourceName); err == nil {
		t.Fatal("expected error resolving feed before registration")
	}

	feed, err := NewFeedSourceFromEnv()
	if err != nil {
		t.Fatalf("feed source from env: %v", err)
	}
	if err := registry.Register(feed); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := registry.Source(DefaultSourceName); err != nil {
		t.Fatalf("resolve after registration: %v", err)
	}
}
