package scoring

import "strings"

const (
	authorLocationWeight = 0.7
	textMentionWeight    = 0.3
)

// RegionMatcher scores how strongly a mention ties to the configured tracked
// regions. The author's self-reported location weighs more than a passing
// mention in the text.
type RegionMatcher struct {
	regions []string
}

func NewRegionMatcher(regions []string) *RegionMatcher {
	normalized := make([]string, 0, len(regions))
	for _, region := range regions {
		region = strings.ToLower(strings.TrimSpace(region))
		if region != "" {
			normalized = append(normalized, region)
		}
	}
	return &RegionMatcher{regions: normalized}
}

// Score returns a relevance score in [0, 1]. With no regions configured every
// mention scores 0 and the field is effectively unused.
func (m *RegionMatcher) Score(authorLocation, text string) float64 {
	if len(m.regions) == 0 {
		return 0
	}

	score := 0.0
	loweredLocation := strings.ToLower(authorLocation)
	loweredText := strings.ToLower(text)
	for _, region := range m.regions {
		if loweredLocation != "" && strings.Contains(loweredLocation, region) {
			score += authorLocationWeight
			break
		}
	}
	for _, region := range m.regions {
		if loweredText != "" && strings.Contains(loweredText, region) {
			score += textMentionWeight
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
