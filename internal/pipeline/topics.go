package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/classify"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/embedding"
)

// TopicReader loads the active topic rows.
type TopicReader interface {
	ActiveTopics(ctx context.Context) ([]db.TopicRow, error)
}

// StoreTopicSource adapts stored topic rows into classifier topics, decoding
// the jsonb keyword columns and the vector literal.
type StoreTopicSource struct {
	store  TopicReader
	logger zerolog.Logger
}

func NewStoreTopicSource(store TopicReader, logger zerolog.Logger) *StoreTopicSource {
	return &StoreTopicSource{store: store, logger: logger}
}

func (s *StoreTopicSource) ActiveTopics(ctx context.Context) ([]classify.Topic, error) {
	rows, err := s.store.ActiveTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active topics: %w", err)
	}

	topics := make([]classify.Topic, 0, len(rows))
	for _, row := range rows {
		keywords, err := classify.ParseKeywords(row.Keywords)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", row.TopicKey, err)
		}
		groups, err := classify.ParseKeywordGroups(row.KeywordGroups)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", row.TopicKey, err)
		}

		topic := classify.Topic{
			Key:              row.TopicKey,
			DisplayName:      row.DisplayName,
			Category:         row.Category,
			Keywords:         keywords,
			KeywordGroups:    groups,
			RequireAllGroups: row.RequireAllGroups,
		}
		if row.Embedding != nil && *row.Embedding != "" {
			vector, err := embedding.ParseLiteral(*row.Embedding)
			if err != nil {
				// A topic without a usable embedding still classifies by keywords.
				s.logger.Warn().Err(err).Str("topic_key", row.TopicKey).Msg("skipping unreadable topic embedding")
			} else {
				topic.Embedding = vector
			}
		}
		topics = append(topics, topic)
	}
	return topics, nil
}
