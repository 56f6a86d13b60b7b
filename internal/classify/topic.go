package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	GroupTypeAnd = "and"
	GroupTypeOr  = "or"
)

// KeywordGroup is a typed sublist of keywords: an "and" group requires every
// keyword, an "or" group requires at least one.
type KeywordGroup struct {
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
}

// Topic is one classifier target. A topic carries either a flat keyword list
// (OR semantics) or typed keyword groups, plus at most one precomputed
// embedding vector.
type Topic struct {
	Key              string
	DisplayName      string
	Category         string
	Keywords         []string
	KeywordGroups    []KeywordGroup
	RequireAllGroups bool
	Embedding        []float64
}

// ParseKeywords decodes the jsonb flat keyword column.
func ParseKeywords(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return normalizeKeywords(keywords), nil
}

// ParseKeywordGroups decodes the jsonb keyword_groups column and validates the
// group types.
func ParseKeywordGroups(raw []byte) ([]KeywordGroup, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var groups []KeywordGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("decode keyword groups: %w", err)
	}

	parsed := make([]KeywordGroup, 0, len(groups))
	for i, group := range groups {
		groupType := strings.ToLower(strings.TrimSpace(group.Type))
		switch groupType {
		case GroupTypeAnd, GroupTypeOr:
		default:
			return nil, fmt.Errorf("keyword group %d has invalid type %q", i, group.Type)
		}
		keywords := normalizeKeywords(group.Keywords)
		if len(keywords) == 0 {
			continue
		}
		parsed = append(parsed, KeywordGroup{Type: groupType, Keywords: keywords})
	}
	return parsed, nil
}

func normalizeKeywords(keywords []string) []string {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		lowered := strings.ToLower(strings.TrimSpace(keyword))
		if lowered == "" {
			continue
		}
		if _, exists := seen[lowered]; exists {
			continue
		}
		seen[lowered] = struct{}{}
		normalized = append(normalized, lowered)
	}
	return normalized
}
