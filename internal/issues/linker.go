package issues

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/embedding"
	"horse.fit/vantage/internal/globaltime"
)

const (
	defaultCacheTTL  = 30 * time.Second
	defaultCacheSize = 256
)

// Store is the persistence surface the linker needs.
type Store interface {
	ActiveIssuesByTopic(ctx context.Context, topicKey string) ([]db.IssueRow, error)
	InsertIssueAssignment(ctx context.Context, issueID, mentionID int64, topicKey string, similarity float64, now time.Time) error
	SetMentionIssue(ctx context.Context, mentionID int64, issueSlug, issueLabel string, now time.Time) error
	IncrementIssueMentionCount(ctx context.Context, issueID int64, now time.Time) error
}

// Match is the winning issue for one mention.
type Match struct {
	IssueID    int64
	IssueSlug  string
	Label      string
	TopicKey   string
	Similarity float64
}

type candidate struct {
	issueID   int64
	issueSlug string
	label     string
	topicKey  string
	centroid  []float64
}

// Linker attaches mentions to the nearest active issue by centroid cosine
// similarity. Issue candidates are cached per topic for a short TTL so a batch
// of mentions under the same topic hits the database once.
type Linker struct {
	store  Store
	logger zerolog.Logger

	mu        sync.RWMutex
	threshold float64
	cacheTTL  time.Duration
	cache     *expirable.LRU[string, []candidate]
}

func NewLinker(store Store, threshold float64, ttl time.Duration, logger zerolog.Logger) *Linker {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Linker{
		store:     store,
		threshold: threshold,
		logger:    logger,
		cacheTTL:  ttl,
		cache:     expirable.NewLRU[string, []candidate](defaultCacheSize, nil, ttl),
	}
}

// UpdateOptions applies a reloaded threshold and cache TTL. A TTL change
// swaps in a fresh cache; entries written under the old TTL are dropped.
func (l *Linker) UpdateOptions(threshold float64, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	l.mu.Lock()
	l.threshold = threshold
	if ttl != l.cacheTTL {
		l.cacheTTL = ttl
		l.cache = expirable.NewLRU[string, []candidate](defaultCacheSize, nil, ttl)
	}
	l.mu.Unlock()
}

// Link finds the closest active issue across the mention's assigned topics and
// records the assignment when similarity clears the threshold. A mention
// without a usable embedding, or whose best candidate falls short, stays
// unlinked and returns a nil match.
func (l *Linker) Link(ctx context.Context, mentionID int64, topicKeys []string, textEmbedding []float64) (*Match, error) {
	if !embedding.Valid(textEmbedding) || len(topicKeys) == 0 {
		return nil, nil
	}

	var best *Match
	for _, topicKey := range topicKeys {
		candidates, err := l.candidatesForTopic(ctx, topicKey)
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			similarity := embedding.Cosine(textEmbedding, cand.centroid)
			if best != nil && similarity <= best.Similarity {
				continue
			}
			best = &Match{
				IssueID:    cand.issueID,
				IssueSlug:  cand.issueSlug,
				Label:      cand.label,
				TopicKey:   cand.topicKey,
				Similarity: similarity,
			}
		}
	}

	l.mu.RLock()
	threshold := l.threshold
	l.mu.RUnlock()
	if best == nil || best.Similarity < threshold {
		return nil, nil
	}

	now := globaltime.UTC()
	if err := l.store.InsertIssueAssignment(ctx, best.IssueID, mentionID, best.TopicKey, best.Similarity, now); err != nil {
		return nil, fmt.Errorf("insert issue assignment mention_id=%d: %w", mentionID, err)
	}
	if err := l.store.SetMentionIssue(ctx, mentionID, best.IssueSlug, best.Label, now); err != nil {
		return nil, fmt.Errorf("set mention issue mention_id=%d: %w", mentionID, err)
	}
	if err := l.store.IncrementIssueMentionCount(ctx, best.IssueID, now); err != nil {
		// The assignment itself is durable; the counter catches up next cycle.
		l.logger.Warn().Err(err).Int64("issue_id", best.IssueID).Msg("increment issue mention count failed")
	}

	l.logger.Debug().
		Int64("mention_id", mentionID).
		Str("issue_slug", best.IssueSlug).
		Float64("similarity", best.Similarity).
		Msg("mention linked to issue")
	return best, nil
}

// Invalidate drops the cached candidate list for a topic, forcing the next
// Link under it to re-read issues.
func (l *Linker) Invalidate(topicKey string) {
	l.mu.RLock()
	cache := l.cache
	l.mu.RUnlock()
	cache.Remove(topicKey)
}

func (l *Linker) candidatesForTopic(ctx context.Context, topicKey string) ([]candidate, error) {
	l.mu.RLock()
	cache := l.cache
	l.mu.RUnlock()

	if cached, ok := cache.Get(topicKey); ok {
		return cached, nil
	}

	rows, err := l.store.ActiveIssuesByTopic(ctx, topicKey)
	if err != nil {
		return nil, fmt.Errorf("load issues topic_key=%s: %w", topicKey, err)
	}

	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		centroid, err := embedding.ParseLiteral(row.Centroid)
		if err != nil {
			l.logger.Warn().Err(err).Int64("issue_id", row.IssueID).Msg("skipping issue with unreadable centroid")
			continue
		}
		candidates = append(candidates, candidate{
			issueID:   row.IssueID,
			issueSlug: row.IssueSlug,
			label:     row.Label,
			topicKey:  row.TopicKey,
			centroid:  centroid,
		})
	}

	cache.Add(topicKey, candidates)
	return candidates, nil
}
