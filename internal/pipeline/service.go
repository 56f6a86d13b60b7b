package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/batch"
	"horse.fit/vantage/internal/classify"
	"horse.fit/vantage/internal/collector"
	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/dedup"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/issues"
)

// Store is the persistence surface one cycle needs. *db.Store satisfies it.
type Store interface {
	Profile(ctx context.Context, userID string) (db.ProfileRow, error)
	CorpusEntries(ctx context.Context, userID string) ([]db.CorpusEntry, error)
	BeginTx(ctx context.Context) (db.Tx, error)
	InsertMention(ctx context.Context, q db.Querier, mention db.NewMention, now time.Time) (int64, error)
	UpdateMentionSentiment(ctx context.Context, q db.Querier, mentionID int64, score float64, label string, now time.Time) error
	UpdateMentionLocationScore(ctx context.Context, q db.Querier, mentionID int64, score float64, now time.Time) error
	InsertTopicAssignment(ctx context.Context, q db.Querier, row db.TopicAssignmentRow, now time.Time) error
	InsertCycleRun(ctx context.Context, runUUID, userID string, startedAt time.Time) (int64, error)
	CompleteCycleRun(ctx context.Context, runID int64, counts db.CycleRunCounts, finishedAt time.Time, duration time.Duration) error
	FailCycleRun(ctx context.Context, runID int64, runErr error, finishedAt time.Time, duration time.Duration) error
}

// Embedder turns text batches into vectors. Failures degrade the cycle to
// keyword-only classification rather than aborting it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// SentimentScorer scores one text in [-1, 1] with a label.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, string, error)
}

// LocationScorer scores regional relevance in [0, 1].
type LocationScorer interface {
	Score(authorLocation, text string) float64
}

// TopicClassifier scores text against the loaded topic set.
type TopicClassifier interface {
	Classify(text string, textEmbedding []float64) []classify.Assignment
	SetWeights(weights classify.Weights)
	Reload(ctx context.Context) error
}

// IssueLinker attaches one classified mention to its nearest active issue.
type IssueLinker interface {
	Link(ctx context.Context, mentionID int64, topicKeys []string, textEmbedding []float64) (*issues.Match, error)
	UpdateOptions(threshold float64, ttl time.Duration)
}

// Sources yields the active collector set for a cycle.
type Sources interface {
	ActiveSources() []collector.Source
}

// Service runs the full analysis cycle for one user: collect, deduplicate,
// insert+score, location-score, link. Phases run strictly in sequence; inside
// a phase, batches run concurrently on their own database transactions.
type Service struct {
	store      Store
	cfg        *config.Manager
	sources    Sources
	embedder   Embedder
	classifier TopicClassifier
	linker     IssueLinker
	sentiment  SentimentScorer
	location   LocationScorer
	logger     zerolog.Logger
}

func NewService(
	store Store,
	cfg *config.Manager,
	sources Sources,
	embedder Embedder,
	classifier TopicClassifier,
	linker IssueLinker,
	sentiment SentimentScorer,
	location LocationScorer,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:      store,
		cfg:        cfg,
		sources:    sources,
		embedder:   embedder,
		classifier: classifier,
		linker:     linker,
		sentiment:  sentiment,
		location:   location,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// scoredMention is one freshly inserted mention flowing from the scoring
// phase into location scoring and issue linking. Values are passed forward
// explicitly; later phases never re-read what an earlier phase wrote.
type scoredMention struct {
	MentionID      int64
	Text           string
	AuthorLocation string
	TopicKeys      []string
	Embedding      []float64
	Classified     bool
}

type scoreBatchResult struct {
	Mentions   []scoredMention
	Classified int
}

// RunCycle executes one full cycle for userID. It satisfies the scheduler's
// Runner contract.
func (s *Service) RunCycle(ctx context.Context, userID string) error {
	cfg := s.cfg.Current()
	startedAt := globaltime.UTC()

	runID, err := s.store.InsertCycleRun(ctx, uuid.NewString(), userID, startedAt)
	if err != nil {
		return fmt.Errorf("record cycle start: %w", err)
	}

	counts, err := s.runPhases(ctx, cfg, userID)
	finishedAt := globaltime.UTC()
	duration := finishedAt.Sub(startedAt)

	if err != nil {
		if failErr := s.store.FailCycleRun(ctx, runID, err, finishedAt, duration); failErr != nil {
			s.logger.Error().Err(failErr).Int64("run_id", runID).Msg("record cycle failure")
		}
		return err
	}

	if err := s.store.CompleteCycleRun(ctx, runID, counts, finishedAt, duration); err != nil {
		return fmt.Errorf("record cycle completion: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("collected", counts.Collected).
		Int("unique", counts.UniqueInserted).
		Int("duplicates", counts.Duplicates).
		Int("classified", counts.Classified).
		Int("linked", counts.Linked).
		Dur("duration", duration).
		Msg("cycle finished")
	return nil
}

func (s *Service) runPhases(ctx context.Context, cfg *config.Config, userID string) (db.CycleRunCounts, error) {
	var counts db.CycleRunCounts

	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return counts, err
	}

	// Topic definitions and scoring knobs may have changed since the last
	// cycle; each cycle runs against the current snapshot.
	s.classifier.SetWeights(classify.Weights{
		Keyword:                 cfg.KeywordWeight,
		Embedding:               cfg.EmbeddingWeight,
		MinScore:                cfg.MinTopicScore,
		MaxTopics:               cfg.MaxTopics,
		KeywordHighConfidence:   cfg.KeywordHighConfidence,
		EmbeddingHighConfidence: cfg.EmbeddingHighConfidence,
	})
	s.linker.UpdateOptions(cfg.IssueSimilarityThreshold, cfg.IssueCacheTTL)
	if err := s.classifier.Reload(ctx); err != nil {
		return counts, fmt.Errorf("reload topics: %w", err)
	}

	collected, err := s.collectPhase(ctx, cfg, profile)
	if err != nil {
		return counts, err
	}
	counts.Collected = len(collected)
	if len(collected) == 0 {
		return counts, nil
	}

	prepared := s.prepareRecords(ctx, cfg, collected)
	if len(prepared) == 0 {
		return counts, nil
	}

	corpus, err := s.store.CorpusEntries(ctx, userID)
	if err != nil {
		return counts, err
	}

	engine := dedup.NewEngine(dedup.Options{
		FuzzyEnabled:   cfg.DedupFuzzyEnabled,
		FuzzyThreshold: cfg.DedupSimilarityThreshold,
	}, s.logger)

	dedupRecords := make([]dedup.Record, len(prepared))
	for i, record := range prepared {
		dedupRecords[i] = dedup.Record{
			Text:        record.Text,
			Content:     record.Content,
			Title:       record.Title,
			Description: record.Description,
		}
	}
	dedupCorpus := make([]dedup.CorpusEntry, len(corpus))
	for i, entry := range corpus {
		dedupCorpus[i] = dedup.CorpusEntry{
			MentionID:   entry.MentionID,
			Text:        entry.Text,
			Content:     entry.Content,
			Title:       entry.Title,
			Description: entry.Description,
		}
	}
	partition := engine.Deduplicate(dedupRecords, dedupCorpus)
	counts.Duplicates = partition.Stats.ExternalDuplicates + partition.Stats.InternalDuplicates

	s.logger.Info().
		Str("user_id", userID).
		Int("total", partition.Stats.Total).
		Int("unique", partition.Stats.Unique).
		Int("external_duplicates", partition.Stats.ExternalDuplicates).
		Int("internal_duplicates", partition.Stats.InternalDuplicates).
		Msg("dedup pass complete")

	fresh := make([]collector.RawRecord, 0, len(partition.UniqueIndexes))
	for _, idx := range partition.UniqueIndexes {
		fresh = append(fresh, prepared[idx])
	}
	if len(fresh) == 0 {
		return counts, nil
	}

	scored, err := s.scorePhase(ctx, cfg, userID, fresh)
	if err != nil {
		return counts, err
	}
	counts.UniqueInserted = len(scored)
	for _, mention := range scored {
		if mention.Classified {
			counts.Classified++
		}
	}

	s.locationPhase(ctx, cfg, scored)
	counts.Linked = s.linkPhase(ctx, scored)

	return counts, nil
}

// collectPhase dispatches every active source through the batch executor, one
// source per batch. A failing source contributes nothing and the cycle
// proceeds with whatever the others returned, but when every source fails the
// whole cycle fails so the run is recorded as such.
func (s *Service) collectPhase(ctx context.Context, cfg *config.Config, profile db.ProfileRow) ([]collector.RawRecord, error) {
	sources := s.sources.ActiveSources()
	if len(sources) == 0 {
		s.logger.Warn().Str("user_id", profile.UserID).Msg("no active collector sources")
		return nil, nil
	}

	query := collector.Query{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		Since:       globaltime.UTC().Add(-cfg.CollectWindow),
		Limit:       cfg.CollectLimit,
	}

	results := batch.Run(ctx, s.logger, sources, batch.Options{
		BatchSize:  1,
		MaxWorkers: cfg.CollectMaxWorkers,
	}, noHandle, func(ctx context.Context, _ struct{}, _ int, items []collector.Source) ([]collector.RawRecord, error) {
		collected := make([]collector.RawRecord, 0, cfg.CollectLimit)
		for _, source := range items {
			records, err := source.Collect(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", source.Name(), err)
			}
			collected = append(collected, records...)
		}
		return collected, nil
	})

	var all []collector.RawRecord
	var failed int
	var firstErr error
	for batchIndex := 0; batchIndex < len(results); batchIndex++ {
		result := results[batchIndex]
		if result.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		all = append(all, result.Value...)
	}
	if failed == len(results) && firstErr != nil {
		return nil, fmt.Errorf("collect phase: all %d sources failed: %w", failed, firstErr)
	}
	return all, nil
}

// scorePhase inserts unique mentions and scores them: embedding, topic
// classification, sentiment. Each batch owns one transaction; a failed batch
// rolls back and drops only its own mentions. When every batch fails the
// cycle fails.
func (s *Service) scorePhase(ctx context.Context, cfg *config.Config, userID string, fresh []collector.RawRecord) ([]scoredMention, error) {
	results := batch.Run(ctx, s.logger, fresh, batch.Options{
		BatchSize:  cfg.ScoreBatchSize,
		MaxWorkers: cfg.ScoreMaxWorkers,
	}, s.txFactory, func(ctx context.Context, tx db.Tx, batchIndex int, items []collector.RawRecord) (scoreBatchResult, error) {
		return s.scoreBatch(ctx, tx, userID, items)
	})

	var scored []scoredMention
	var failed int
	var firstErr error
	for _, result := range results {
		if result.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		scored = append(scored, result.Value.Mentions...)
	}
	if failed == len(results) && firstErr != nil {
		return nil, fmt.Errorf("score phase: all %d batches failed: %w", failed, firstErr)
	}
	return scored, nil
}

func (s *Service) scoreBatch(ctx context.Context, tx db.Tx, userID string, items []collector.RawRecord) (scoreBatchResult, error) {
	now := globaltime.UTC()

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = primaryText(item)
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		// Keyword-only classification still works without vectors.
		s.logger.Warn().Err(err).Int("batch_size", len(items)).Msg("embedding batch failed, classifying by keywords only")
		vectors = make([][]float64, len(items))
	}

	var out scoreBatchResult
	for i, item := range items {
		mention := db.NewMention{
			UserID:      userID,
			Platform:    item.Platform,
			Source:      item.Source,
			Text:        item.Text,
			Content:     item.Content,
			Title:       item.Title,
			Description: item.Description,
			Language:    item.Language,
			PublishedAt: item.PublishedAt,
			FetchedAt:   now,
		}
		if item.URL != "" {
			mention.URL = &item.URL
		}
		if item.AuthorLocation != "" {
			mention.AuthorLocation = &item.AuthorLocation
		}

		mentionID, err := s.store.InsertMention(ctx, tx, mention, now)
		if err != nil {
			return scoreBatchResult{}, err
		}

		assignments := s.classifier.Classify(texts[i], vectors[i])
		topicKeys := make([]string, 0, len(assignments))
		for _, assignment := range assignments {
			if err := s.store.InsertTopicAssignment(ctx, tx, db.TopicAssignmentRow{
				MentionID:      mentionID,
				TopicKey:       assignment.TopicKey,
				Confidence:     assignment.Confidence,
				KeywordScore:   assignment.KeywordScore,
				EmbeddingScore: assignment.EmbeddingScore,
			}, now); err != nil {
				return scoreBatchResult{}, err
			}
			topicKeys = append(topicKeys, assignment.TopicKey)
		}

		score, label, err := s.sentiment.Score(ctx, texts[i])
		if err != nil {
			s.logger.Warn().Err(err).Int64("mention_id", mentionID).Msg("sentiment scoring failed")
		} else if err := s.store.UpdateMentionSentiment(ctx, tx, mentionID, score, label, now); err != nil {
			return scoreBatchResult{}, err
		}

		out.Mentions = append(out.Mentions, scoredMention{
			MentionID:      mentionID,
			Text:           texts[i],
			AuthorLocation: item.AuthorLocation,
			TopicKeys:      topicKeys,
			Embedding:      vectors[i],
			Classified:     len(topicKeys) > 0,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return scoreBatchResult{}, fmt.Errorf("commit score batch: %w", err)
	}
	return out, nil
}

// locationPhase writes regional relevance scores. Failures here never fail
// the cycle: the score is advisory.
func (s *Service) locationPhase(ctx context.Context, cfg *config.Config, scored []scoredMention) {
	batch.Run(ctx, s.logger, scored, batch.Options{
		BatchSize:  cfg.LocationBatchSize,
		MaxWorkers: cfg.LocationMaxWorkers,
	}, s.txFactory, func(ctx context.Context, tx db.Tx, _ int, items []scoredMention) (struct{}, error) {
		now := globaltime.UTC()
		for _, mention := range items {
			score := s.location.Score(mention.AuthorLocation, mention.Text)
			if err := s.store.UpdateMentionLocationScore(ctx, tx, mention.MentionID, score, now); err != nil {
				return struct{}{}, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return struct{}{}, fmt.Errorf("commit location batch: %w", err)
		}
		return struct{}{}, nil
	})
}

// linkPhase runs sequentially: the linker's centroid cache makes per-mention
// lookups cheap, and linking volume is already reduced to classified mentions.
func (s *Service) linkPhase(ctx context.Context, scored []scoredMention) int {
	linked := 0
	for _, mention := range scored {
		if len(mention.TopicKeys) == 0 {
			continue
		}
		match, err := s.linker.Link(ctx, mention.MentionID, mention.TopicKeys, mention.Embedding)
		if err != nil {
			s.logger.Warn().Err(err).Int64("mention_id", mention.MentionID).Msg("issue linking failed")
			continue
		}
		if match != nil {
			linked++
		}
	}
	return linked
}

// txFactory opens one transaction per batch. The release func rolls back
// whatever the worker did not commit.
func (s *Service) txFactory(ctx context.Context, _ int) (db.Tx, func(), error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}
	return tx, release, nil
}

func noHandle(ctx context.Context, _ int) (struct{}, func(), error) {
	return struct{}{}, nil, nil
}

func primaryText(record collector.RawRecord) string {
	for _, field := range []string{record.Text, record.Content, record.Title, record.Description} {
		if field != "" {
			return field
		}
	}
	return ""
}
