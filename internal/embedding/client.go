package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestTimeout = 45 * time.Second
	DefaultRequestsPerSec = 4
)

type Options struct {
	Endpoint       string
	RequestTimeout time.Duration
	RequestsPerSec float64
	HTTPClient     *http.Client
}

// Client calls the external embedding provider. Requests are rate limited and
// guarded by a circuit breaker so a degraded provider degrades classification
// to keyword-only instead of stalling whole cycles.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = DefaultRequestsPerSec
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("embedding circuit breaker state changed")
		},
	})

	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    breaker,
		logger:     logger,
	}
}

// EmbedTexts returns one vector per input text, aligned by index. A vector of
// the wrong length is returned as nil so callers treat it as absent.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if c == nil || c.endpoint == "" {
		return nil, fmt.Errorf("embedding client is not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit wait: %w", err)
	}

	raw, err := c.breaker.Execute(func() (any, error) {
		return c.request(ctx, texts)
	})
	if err != nil {
		return nil, err
	}

	vectors := raw.([][]float64)
	for i, vector := range vectors {
		if !Valid(vector) {
			c.logger.Warn().
				Int("index", i).
				Int("dimensions", len(vector)).
				Msg("embedding provider returned malformed vector, treating as absent")
			vectors[i] = nil
		}
	}
	return vectors, nil
}

// EmbedText is the single-text convenience wrapper.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding response count mismatch: requested=1 returned=%d", len(vectors))
	}
	return vectors[0], nil
}

func (c *Client) request(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(texts), len(parsed.Embeddings))
	}
	return parsed.Embeddings, nil
}
