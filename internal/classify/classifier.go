package classify

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/embedding"
)

const (
	// Candidates with no keyword signal need at least this much embedding
	// similarity; anything below is embedding-only noise.
	embeddingOnlyFloor = 0.25

	// Both-signals-agree boost applies above these floors.
	agreementKeywordFloor   = 0.15
	agreementEmbeddingFloor = 0.25

	agreementBoost      = 1.15
	highConfidenceBoost = 1.05
)

// Source supplies the active topic configuration; the db layer implements it
// through an adapter in the pipeline.
type Source interface {
	ActiveTopics(ctx context.Context) ([]Topic, error)
}

type Weights struct {
	Keyword                 float64
	Embedding               float64
	MinScore                float64
	MaxTopics               int
	KeywordHighConfidence   float64
	EmbeddingHighConfidence float64
}

// Assignment is one scored (topic, mention-text) pairing, never updated in
// place: reclassification produces a fresh set.
type Assignment struct {
	TopicKey       string
	DisplayName    string
	Confidence     float64
	KeywordScore   float64
	EmbeddingScore float64
}

// Classifier scores free text against the loaded topic set using keyword
// boolean logic plus embedding cosine similarity. Topics are loaded once and
// hot-reloaded via Reload.
type Classifier struct {
	source  Source
	weights Weights
	logger  zerolog.Logger

	mu     sync.RWMutex
	topics []Topic
}

func NewClassifier(source Source, weights Weights, logger zerolog.Logger) *Classifier {
	if weights.MaxTopics <= 0 {
		weights.MaxTopics = 3
	}
	return &Classifier{
		source:  source,
		weights: weights,
		logger:  logger,
	}
}

// SetWeights swaps the scoring weights. Called at cycle start so config
// reloads reach classification without a restart.
func (c *Classifier) SetWeights(weights Weights) {
	if weights.MaxTopics <= 0 {
		weights.MaxTopics = 3
	}
	c.mu.Lock()
	c.weights = weights
	c.mu.Unlock()
}

// Reload replaces the topic set from the source. The previous set stays
// active when the load fails.
func (c *Classifier) Reload(ctx context.Context) error {
	if c == nil || c.source == nil {
		return fmt.Errorf("classifier is not initialized")
	}

	topics, err := c.source.ActiveTopics(ctx)
	if err != nil {
		return fmt.Errorf("load active topics: %w", err)
	}

	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()

	c.logger.Debug().Int("topics", len(topics)).Msg("topic configuration reloaded")
	return nil
}

// Topics returns the currently loaded topic set.
func (c *Classifier) Topics() []Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Topic(nil), c.topics...)
}

// Classify scores text against every loaded topic and returns the surviving
// candidates sorted by confidence, capped at MaxTopics. A nil or malformed
// text embedding degrades to keyword-only scoring with embedding score 0.
func (c *Classifier) Classify(text string, textEmbedding []float64) []Assignment {
	c.mu.RLock()
	topics := c.topics
	weights := c.weights
	c.mu.RUnlock()

	hasEmbedding := embedding.Valid(textEmbedding)

	candidates := make([]Assignment, 0, len(topics))
	for _, topic := range topics {
		kwScore := keywordScore(text, topic)

		embScore := 0.0
		if hasEmbedding && len(topic.Embedding) > 0 {
			embScore = math.Max(0, embedding.Cosine(textEmbedding, topic.Embedding))
		}

		if kwScore == 0 && embScore < embeddingOnlyFloor {
			continue
		}

		confidence := weights.Keyword*kwScore + weights.Embedding*embScore
		if kwScore > agreementKeywordFloor && embScore > agreementEmbeddingFloor {
			confidence = math.Min(confidence*agreementBoost, 1)
		}
		if (weights.KeywordHighConfidence > 0 && kwScore > weights.KeywordHighConfidence) ||
			(weights.EmbeddingHighConfidence > 0 && embScore > weights.EmbeddingHighConfidence) {
			confidence = math.Min(confidence*highConfidenceBoost, 1)
		}

		if confidence < weights.MinScore {
			continue
		}

		candidates = append(candidates, Assignment{
			TopicKey:       topic.Key,
			DisplayName:    topic.DisplayName,
			Confidence:     confidence,
			KeywordScore:   kwScore,
			EmbeddingScore: embScore,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].TopicKey < candidates[j].TopicKey
	})

	if len(candidates) > weights.MaxTopics {
		candidates = candidates[:weights.MaxTopics]
	}
	return candidates
}
