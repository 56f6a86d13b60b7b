package scoring

import (
	"context"
	"testing"
)

func TestLexiconSentimentPositive(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconSentiment()
	score, label, err := scorer.Score(context.Background(), "Residents praised the excellent progress on the road project")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score <= 0 || label != LabelPositive {
		t.Fatalf("expected positive sentiment, got score=%f label=%s", score, label)
	}
}

func TestLexiconSentimentNegative(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconSentiment()
	score, label, err := scorer.Score(context.Background(), "Corruption scandal and fuel shortage anger protesters")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score >= 0 || label != LabelNegative {
		t.Fatalf("expected negative sentiment, got score=%f label=%s", score, label)
	}
}

func TestLexiconSentimentNeutralWithoutLexiconHits(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconSentiment()
	score, label, err := scorer.Score(context.Background(), "The committee meets on Tuesday at noon")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 0 || label != LabelNeutral {
		t.Fatalf("expected neutral sentiment, got score=%f label=%s", score, label)
	}
}

func TestLexiconSentimentNegationFlipsPolarity(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconSentiment()
	score, _, err := scorer.Score(context.Background(), "not good")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score >= 0 {
		t.Fatalf("expected negated positive term to score negative, got %f", score)
	}
}

func TestRegionMatcherWeighting(t *testing.T) {
	t.Parallel()

	matcher := NewRegionMatcher([]string{"Lagos", "abuja"})

	// Author location match dominates.
	if got := matcher.Score("Lagos, Nigeria", "nothing regional here"); got != 0.7 {
		t.Fatalf("expected 0.7 for author location match, got %f", got)
	}

	// Text mention alone scores lower.
	if got := matcher.Score("", "protest on Abuja expressway"); got != 0.3 {
		t.Fatalf("expected 0.3 for text mention, got %f", got)
	}

	// Both signals stack.
	if got := matcher.Score("Abuja", "traffic in lagos today"); got != 1.0 {
		t.Fatalf("expected 1.0 for both signals, got %f", got)
	}

	// No configured regions means the score is unused.
	empty := NewRegionMatcher(nil)
	if got := empty.Score("Lagos", "lagos"); got != 0 {
		t.Fatalf("expected 0 with no regions configured, got %f", got)
	}
}
