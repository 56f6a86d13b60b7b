package collector

import (
	"context"
	"encoding/json"
	"time"
)

// RawRecord is one collected mention before deduplication and scoring. Raw
// keeps the provider's original payload for schema validation at ingestion.
type RawRecord struct {
	Source         string
	Platform       string
	ExternalID     string
	Text           string
	Content        string
	Title          string
	Description    string
	URL            string
	AuthorLocation string
	Language       string
	PublishedAt    *time.Time
	Raw            json.RawMessage
}

// Query scopes one collection pass to a monitored user.
type Query struct {
	UserID      string
	DisplayName string
	Since       time.Time
	Limit       int
}

// Source fetches mentions from one upstream provider.
type Source interface {
	Collect(ctx context.Context, query Query) ([]RawRecord, error)
	Name() string
}
