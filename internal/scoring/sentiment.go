package scoring

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Sentiment labels written onto mentions.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// neutralBand is the score band around zero treated as neutral.
const neutralBand = 0.15

var positiveTerms = map[string]float64{
	"good":        1.0,
	"great":       1.2,
	"excellent":   1.4,
	"praise":      1.2,
	"praised":     1.2,
	"support":     0.8,
	"supports":    0.8,
	"commend":     1.2,
	"commended":   1.2,
	"progress":    0.8,
	"improve":     0.8,
	"improved":    0.9,
	"success":     1.1,
	"successful":  1.1,
	"win":         0.9,
	"welcome":     0.7,
	"welcomed":    0.8,
	"achievement": 1.1,
	"relief":      0.8,
	"hope":        0.6,
	"celebrate":   1.0,
}

var negativeTerms = map[string]float64{
	"bad":        1.0,
	"terrible":   1.4,
	"corrupt":    1.4,
	"corruption": 1.4,
	"fail":       1.0,
	"failed":     1.1,
	"failure":    1.2,
	"crisis":     1.1,
	"scandal":    1.3,
	"protest":    0.7,
	"protests":   0.7,
	"anger":      0.9,
	"angry":      0.9,
	"condemn":    1.2,
	"condemned":  1.2,
	"blame":      0.9,
	"blamed":     0.9,
	"worst":      1.3,
	"violence":   1.1,
	"fraud":      1.3,
	"suffering":  1.0,
	"shortage":   0.8,
}

var negations = map[string]struct{}{
	"not":     {},
	"no":      {},
	"never":   {},
	"without": {},
	"hardly":  {},
}

// LexiconSentiment scores text against a small weighted term lexicon. It is
// the built-in fallback when no external sentiment provider is configured.
type LexiconSentiment struct{}

func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{}
}

// Score returns a sentiment score in [-1, 1] and its label. A term preceded by
// a negation flips its polarity.
func (s *LexiconSentiment) Score(ctx context.Context, text string) (float64, string, error) {
	_ = ctx
	tokens := tokenizeWords(text)
	if len(tokens) == 0 {
		return 0, LabelNeutral, nil
	}

	total := 0.0
	hits := 0
	for i, token := range tokens {
		weight, positive := positiveTerms[token]
		if !positive {
			if w, negative := negativeTerms[token]; negative {
				weight, positive = -w, true
			}
		}
		if !positive {
			continue
		}
		if i > 0 {
			if _, negated := negations[tokens[i-1]]; negated {
				weight = -weight
			}
		}
		total += weight
		hits++
	}
	if hits == 0 {
		return 0, LabelNeutral, nil
	}

	// Dampen by token count so one loaded word in a long text stays mild.
	score := total / math.Sqrt(float64(len(tokens)))
	score = math.Max(-1, math.Min(1, score))
	return score, labelFor(score), nil
}

func labelFor(score float64) string {
	switch {
	case score > neutralBand:
		return LabelPositive
	case score < -neutralBand:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

func tokenizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
