package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"VG_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"VG_DB_MAX_CONNS" default:"8"`

	// Scheduler & task lock.
	SchedulerPollInterval time.Duration `envconfig:"VG_SCHEDULER_POLL_INTERVAL" default:"15s"`
	CycleInterval         time.Duration `envconfig:"VG_CYCLE_INTERVAL" default:"30m"`
	ContinuousMode        bool          `envconfig:"VG_CONTINUOUS_MODE" default:"false"`
	MaxConsecutiveCycles  int           `envconfig:"VG_MAX_CONSECUTIVE_CYCLES" default:"10"`
	CycleResetInterval    time.Duration `envconfig:"VG_CYCLE_RESET_INTERVAL" default:"2h"`
	LockMaxAge            time.Duration `envconfig:"VG_LOCK_MAX_AGE" default:"45m"`
	UserAllowlist         string        `envconfig:"VG_USER_ALLOWLIST" default:""`

	// Batch execution, per phase.
	CollectBatchSize   int `envconfig:"VG_COLLECT_BATCH_SIZE" default:"2"`
	CollectMaxWorkers  int `envconfig:"VG_COLLECT_MAX_WORKERS" default:"4"`
	ScoreBatchSize     int `envconfig:"VG_SCORE_BATCH_SIZE" default:"50"`
	ScoreMaxWorkers    int `envconfig:"VG_SCORE_MAX_WORKERS" default:"4"`
	LocationBatchSize  int `envconfig:"VG_LOCATION_BATCH_SIZE" default:"50"`
	LocationMaxWorkers int `envconfig:"VG_LOCATION_MAX_WORKERS" default:"2"`

	// Topic classification.
	KeywordWeight           float64 `envconfig:"VG_KEYWORD_WEIGHT" default:"0.6"`
	EmbeddingWeight         float64 `envconfig:"VG_EMBEDDING_WEIGHT" default:"0.4"`
	MinTopicScore           float64 `envconfig:"VG_MIN_TOPIC_SCORE" default:"0.3"`
	MaxTopics               int     `envconfig:"VG_MAX_TOPICS" default:"3"`
	KeywordHighConfidence   float64 `envconfig:"VG_KEYWORD_HIGH_CONFIDENCE" default:"0.6"`
	EmbeddingHighConfidence float64 `envconfig:"VG_EMBEDDING_HIGH_CONFIDENCE" default:"0.55"`

	// Deduplication.
	DedupSimilarityThreshold float64 `envconfig:"VG_DEDUP_SIMILARITY_THRESHOLD" default:"0.85"`
	DedupFuzzyEnabled        bool    `envconfig:"VG_DEDUP_FUZZY_ENABLED" default:"false"`

	// Issue linking.
	IssueSimilarityThreshold float64       `envconfig:"VG_ISSUE_SIMILARITY_THRESHOLD" default:"0.70"`
	IssueCacheTTL            time.Duration `envconfig:"VG_ISSUE_CACHE_TTL" default:"30s"`

	// Collection.
	CollectWindow    time.Duration `envconfig:"VG_COLLECT_WINDOW" default:"24h"`
	CollectLimit     int           `envconfig:"VG_COLLECT_LIMIT" default:"200"`
	ReaderEnrichment bool          `envconfig:"VG_READER_ENRICHMENT" default:"false"`

	// Location scoring.
	TrackedRegions string `envconfig:"VG_TRACKED_REGIONS" default:""`

	// Embedding provider.
	EmbeddingEndpoint string  `envconfig:"VG_EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingRPS      float64 `envconfig:"VG_EMBEDDING_RPS" default:"4"`

	// HTTP trigger surface.
	APITokenHash string `envconfig:"VG_API_TOKEN_HASH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("VG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("VG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("VG_DB_MIN_CONNS (%d) cannot exceed VG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SchedulerPollInterval < time.Second {
		return fmt.Errorf("VG_SCHEDULER_POLL_INTERVAL must be >= 1s")
	}
	if c.CycleInterval < time.Minute {
		return fmt.Errorf("VG_CYCLE_INTERVAL must be >= 1m")
	}
	if c.LockMaxAge < time.Minute {
		return fmt.Errorf("VG_LOCK_MAX_AGE must be >= 1m")
	}
	if c.MaxConsecutiveCycles < 0 {
		return fmt.Errorf("VG_MAX_CONSECUTIVE_CYCLES must be >= 0")
	}
	if c.CycleResetInterval <= 0 {
		return fmt.Errorf("VG_CYCLE_RESET_INTERVAL must be positive")
	}
	if err := validateBatch("VG_COLLECT", c.CollectBatchSize, c.CollectMaxWorkers); err != nil {
		return err
	}
	if err := validateBatch("VG_SCORE", c.ScoreBatchSize, c.ScoreMaxWorkers); err != nil {
		return err
	}
	if err := validateBatch("VG_LOCATION", c.LocationBatchSize, c.LocationMaxWorkers); err != nil {
		return err
	}
	if c.KeywordWeight < 0 || c.EmbeddingWeight < 0 {
		return fmt.Errorf("classifier weights must not be negative")
	}
	if c.KeywordWeight+c.EmbeddingWeight <= 0 {
		return fmt.Errorf("at least one classifier weight must be positive")
	}
	if c.MinTopicScore < 0 || c.MinTopicScore > 1 {
		return fmt.Errorf("VG_MIN_TOPIC_SCORE must be in [0,1]")
	}
	if c.MaxTopics < 1 {
		return fmt.Errorf("VG_MAX_TOPICS must be >= 1")
	}
	if c.DedupSimilarityThreshold <= 0 || c.DedupSimilarityThreshold > 1 {
		return fmt.Errorf("VG_DEDUP_SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.IssueSimilarityThreshold <= 0 || c.IssueSimilarityThreshold > 1 {
		return fmt.Errorf("VG_ISSUE_SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.IssueCacheTTL < time.Second {
		return fmt.Errorf("VG_ISSUE_CACHE_TTL must be >= 1s")
	}
	if c.CollectWindow <= 0 {
		return fmt.Errorf("VG_COLLECT_WINDOW must be positive")
	}
	if c.CollectLimit < 1 {
		return fmt.Errorf("VG_COLLECT_LIMIT must be >= 1")
	}
	if strings.TrimSpace(c.EmbeddingEndpoint) == "" {
		return fmt.Errorf("VG_EMBEDDING_ENDPOINT is required")
	}
	if c.EmbeddingRPS <= 0 {
		return fmt.Errorf("VG_EMBEDDING_RPS must be positive")
	}
	return nil
}

func validateBatch(prefix string, batchSize, maxWorkers int) error {
	if batchSize < 1 {
		return fmt.Errorf("%s_BATCH_SIZE must be >= 1", prefix)
	}
	if maxWorkers < 1 {
		return fmt.Errorf("%s_MAX_WORKERS must be >= 1", prefix)
	}
	return nil
}

// TrackedRegionList returns the configured region names used for location
// scoring, lowercased and deduplicated.
func (c *Config) TrackedRegionList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.TrackedRegions, ",")
	regions := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		region := strings.ToLower(strings.TrimSpace(part))
		if region == "" {
			continue
		}
		if _, exists := seen[region]; exists {
			continue
		}
		seen[region] = struct{}{}
		regions = append(regions, region)
	}
	return regions
}

// UserAllowlistIDs returns the deduplicated allow-list of user identifiers.
// An empty list means every enabled profile is eligible.
func (c *Config) UserAllowlistIDs() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.UserAllowlist, ",")
	ids := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
