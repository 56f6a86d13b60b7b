package classify

import (
	"math"
	"strings"
	"unicode"
)

const (
	wordBoundaryWeight = 1.0
	substringWeight    = 0.7
	multiHitLogFactor  = 0.15
)

// keywordScore scores text against a topic's keyword configuration. Group
// configuration takes precedence over the flat list when both are present.
func keywordScore(text string, topic Topic) float64 {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return 0
	}

	if len(topic.KeywordGroups) > 0 {
		return groupScore(lowered, topic.KeywordGroups, topic.RequireAllGroups)
	}
	return flatScore(lowered, topic.Keywords)
}

// flatScore is the OR-semantics list score: the weighted proportion of listed
// keywords found (word-boundary hits count full, bare substring hits less),
// log-boosted when several keywords hit, capped at 1.
func flatScore(lowered string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	hits := 0
	weighted := 0.0
	for _, keyword := range keywords {
		switch {
		case containsWord(lowered, keyword):
			weighted += wordBoundaryWeight
			hits++
		case strings.Contains(lowered, keyword):
			weighted += substringWeight
			hits++
		}
	}
	if hits == 0 {
		return 0
	}

	score := weighted / float64(len(keywords))
	if hits > 1 {
		score *= 1 + multiHitLogFactor*math.Log(float64(hits))
	}
	return math.Min(score, 1)
}

// groupScore combines typed groups: OR combination keeps the best group score,
// AND combination (require_all_groups) demands every group match and averages.
func groupScore(lowered string, groups []KeywordGroup, requireAll bool) float64 {
	if len(groups) == 0 {
		return 0
	}

	if requireAll {
		sum := 0.0
		for _, group := range groups {
			score := singleGroupScore(lowered, group)
			if score == 0 {
				return 0
			}
			sum += score
		}
		return math.Min(sum/float64(len(groups)), 1)
	}

	best := 0.0
	for _, group := range groups {
		if score := singleGroupScore(lowered, group); score > best {
			best = score
		}
	}
	return math.Min(best, 1)
}

func singleGroupScore(lowered string, group KeywordGroup) float64 {
	if len(group.Keywords) == 0 {
		return 0
	}

	if group.Type == GroupTypeAnd {
		for _, keyword := range group.Keywords {
			if !containsWord(lowered, keyword) && !strings.Contains(lowered, keyword) {
				return 0
			}
		}
	}
	return flatScore(lowered, group.Keywords)
}

// containsWord reports a keyword occurrence bounded by non-word characters on
// both sides.
func containsWord(lowered, keyword string) bool {
	if keyword == "" {
		return false
	}

	start := 0
	for {
		idx := strings.Index(lowered[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start

		beforeOK := idx == 0 || !isWordRune(rune(lowered[idx-1]))
		endIdx := idx + len(keyword)
		afterOK := endIdx >= len(lowered) || !isWordRune(rune(lowered[endIdx]))
		if beforeOK && afterOK {
			return true
		}

		start = idx + 1
		if start >= len(lowered) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
