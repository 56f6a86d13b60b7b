package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/classify"
	"horse.fit/vantage/internal/collector"
	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/embedding"
	"horse.fit/vantage/internal/issues"
	"horse.fit/vantage/internal/pipeline"
	"horse.fit/vantage/internal/scoring"
)

// buildSources wires every known collector into the registry; the registry
// itself decides which ones are active from the env.
func buildSources() (*collector.Registry, error) {
	registry := collector.NewRegistryFromEnv()

	feed, err := collector.NewFeedSourceFromEnv()
	if err != nil {
		return nil, fmt.Errorf("configure feed source: %w", err)
	}
	if err := registry.Register(feed); err != nil {
		return nil, fmt.Errorf("register feed source: %w", err)
	}

	return registry, nil
}

// buildPipeline assembles the full analysis pipeline around an open pool.
// The config manager is passed through so hot reloads reach every cycle.
func buildPipeline(manager *config.Manager, store *db.Store, logger zerolog.Logger) (*pipeline.Service, error) {
	cfg := manager.Current()

	sources, err := buildSources()
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewClient(embedding.Options{
		Endpoint:       cfg.EmbeddingEndpoint,
		RequestsPerSec: cfg.EmbeddingRPS,
		RequestTimeout: 30 * time.Second,
	}, logger)

	classifier := classify.NewClassifier(pipeline.NewStoreTopicSource(store, logger), classify.Weights{
		Keyword:                 cfg.KeywordWeight,
		Embedding:               cfg.EmbeddingWeight,
		MinScore:                cfg.MinTopicScore,
		MaxTopics:               cfg.MaxTopics,
		KeywordHighConfidence:   cfg.KeywordHighConfidence,
		EmbeddingHighConfidence: cfg.EmbeddingHighConfidence,
	}, logger)

	linker := issues.NewLinker(store, cfg.IssueSimilarityThreshold, cfg.IssueCacheTTL, logger)
	sentiment := scoring.NewLexiconSentiment()
	location := scoring.NewRegionMatcher(cfg.TrackedRegionList())

	return pipeline.NewService(store, manager, sources, embedder, classifier, linker, sentiment, location, logger), nil
}
