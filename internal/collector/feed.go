package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// FeedEndpointEnvVar points at the mention feed service.
	FeedEndpointEnvVar = "VG_FEED_ENDPOINT"
	// FeedTokenEnvVar optionally authenticates against the feed service.
	FeedTokenEnvVar = "VG_FEED_TOKEN"

	defaultFeedTimeout = 60 * time.Second
)

// FeedSource pulls mentions from an HTTP feed service returning a JSON array
// of mention items.
type FeedSource struct {
	endpointURL string
	token       string
	client      *http.Client
}

// NewFeedSourceFromEnv builds a feed source from env vars.
//   - VG_FEED_ENDPOINT (required)
//   - VG_FEED_TOKEN (optional bearer token)
func NewFeedSourceFromEnv() (*FeedSource, error) {
	endpoint := strings.TrimSpace(os.Getenv(FeedEndpointEnvVar))
	if endpoint == "" {
		return nil, fmt.Errorf("%s is not set", FeedEndpointEnvVar)
	}
	return NewFeedSource(endpoint, strings.TrimSpace(os.Getenv(FeedTokenEnvVar))), nil
}

func NewFeedSource(endpoint, token string) *FeedSource {
	return &FeedSource{
		endpointURL: strings.TrimRight(endpoint, "/"),
		token:       token,
		client: &http.Client{
			Timeout: defaultFeedTimeout,
		},
	}
}

func (f *FeedSource) Name() string {
	return "feed"
}

type feedItem struct {
	ExternalID     string  `json:"external_id"`
	Platform       string  `json:"platform"`
	Text           string  `json:"text"`
	Content        string  `json:"content"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	URL            string  `json:"url"`
	AuthorLocation string  `json:"author_location"`
	Language       string  `json:"language"`
	PublishedAt    *string `json:"published_at"`
}

// Collect fetches mentions for one user. Each returned record keeps the
// provider's original JSON payload so ingestion can validate it against the
// mention schema.
func (f *FeedSource) Collect(ctx context.Context, query Query) ([]RawRecord, error) {
	if f == nil {
		return nil, fmt.Errorf("feed source is nil")
	}
	if strings.TrimSpace(query.UserID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	params := url.Values{}
	params.Set("user_id", query.UserID)
	if query.DisplayName != "" {
		params.Set("q", query.DisplayName)
	}
	if !query.Since.IsZero() {
		params.Set("since", query.Since.UTC().Format(time.RFC3339))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpointURL+"/mentions?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send feed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	records := make([]RawRecord, 0, len(payloads))
	for i, payload := range payloads {
		var item feedItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("decode feed item %d: %w", i, err)
		}
		records = append(records, RawRecord{
			Source:         f.Name(),
			Platform:       item.Platform,
			ExternalID:     item.ExternalID,
			Text:           item.Text,
			Content:        item.Content,
			Title:          item.Title,
			Description:    item.Description,
			URL:            item.URL,
			AuthorLocation: item.AuthorLocation,
			Language:       item.Language,
			PublishedAt:    parseFeedTime(item.PublishedAt),
			Raw:            payload,
		})
	}
	return records, nil
}

func parseFeedTime(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
