package classify

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/embedding"
)

type staticSource struct {
	topics []Topic
}

func (s *staticSource) ActiveTopics(ctx context.Context) ([]Topic, error) {
	return s.topics, nil
}

// axisVector returns a 1536-dim unit vector along the given axis.
func axisVector(axis int) []float64 {
	vector := make([]float64, embedding.Dimensions)
	vector[axis] = 1
	return vector
}

// vectorWithCosine returns a 1536-dim unit vector whose cosine similarity to
// axisVector(0) is exactly cosine.
func vectorWithCosine(cosine float64) []float64 {
	vector := make([]float64, embedding.Dimensions)
	vector[0] = cosine
	vector[1] = math.Sqrt(1 - cosine*cosine)
	return vector
}

func newTestClassifier(t *testing.T, topics []Topic, weights Weights) *Classifier {
	t.Helper()
	classifier := NewClassifier(&staticSource{topics: topics}, weights, zerolog.Nop())
	if err := classifier.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return classifier
}

func TestAndGroupRequiresAllKeywords(t *testing.T) {
	t.Parallel()

	topic := Topic{
		Key:         "fuel_prices",
		DisplayName: "Fuel Prices",
		KeywordGroups: []KeywordGroup{
			{Type: GroupTypeAnd, Keywords: []string{"fuel", "price"}},
		},
		RequireAllGroups: true,
	}

	if got := keywordScore("the fuel shortage continues", topic); got != 0 {
		t.Fatalf("expected 0 with only one AND keyword present, got %f", got)
	}
	if got := keywordScore("the fuel price rose again", topic); got <= 0 {
		t.Fatalf("expected positive score with both AND keywords, got %f", got)
	}
}

func TestOrGroupsCombineWithBestScore(t *testing.T) {
	t.Parallel()

	topic := Topic{
		Key: "security",
		KeywordGroups: []KeywordGroup{
			{Type: GroupTypeOr, Keywords: []string{"kidnap", "banditry"}},
			{Type: GroupTypeOr, Keywords: []string{"police", "army"}},
		},
	}

	score := keywordScore("the police responded quickly", topic)
	if score <= 0 {
		t.Fatalf("expected OR group match, got %f", score)
	}

	// Matching both groups must not score lower than matching one.
	both := keywordScore("police and army after the kidnap", topic)
	if both < score {
		t.Fatalf("expected best-group combination to be monotonic: %f < %f", both, score)
	}
}

func TestRequireAllGroupsGatesAcrossGroups(t *testing.T) {
	t.Parallel()

	topic := Topic{
		Key: "subsidy_protests",
		KeywordGroups: []KeywordGroup{
			{Type: GroupTypeOr, Keywords: []string{"subsidy"}},
			{Type: GroupTypeOr, Keywords: []string{"protest"}},
		},
		RequireAllGroups: true,
	}

	if got := keywordScore("the subsidy was removed", topic); got != 0 {
		t.Fatalf("expected 0 when one required group misses, got %f", got)
	}
	if got := keywordScore("subsidy protest in the capital", topic); got <= 0 {
		t.Fatalf("expected positive score when all groups match, got %f", got)
	}
}

func TestFlatScoreWordBoundaryWeighting(t *testing.T) {
	t.Parallel()

	boundary := flatScore("the fuel ran out", []string{"fuel"})
	substring := flatScore("refueling stopped", []string{"fuel"})
	if boundary <= substring {
		t.Fatalf("expected word-boundary hit to outscore substring: %f <= %f", boundary, substring)
	}
	if substring <= 0 {
		t.Fatalf("expected substring hit to still count, got %f", substring)
	}
}

func TestClassifyDropsEmbeddingOnlyNoise(t *testing.T) {
	t.Parallel()

	topics := []Topic{{
		Key:         "economy",
		DisplayName: "Economy",
		Keywords:    []string{"inflation"},
		Embedding:   axisVector(0),
	}}
	classifier := newTestClassifier(t, topics, Weights{Keyword: 0.6, Embedding: 0.4, MinScore: 0.01})

	// keyword_score == 0 and embedding_score 0.2: below the 0.25 floor.
	results := classifier.Classify("nothing relevant here", vectorWithCosine(0.2))
	if len(results) != 0 {
		t.Fatalf("expected embedding-only candidate below floor to be dropped, got %+v", results)
	}

	// embedding_score 0.3 alone clears the floor.
	results = classifier.Classify("nothing relevant here", vectorWithCosine(0.3))
	if len(results) != 1 {
		t.Fatalf("expected embedding-only candidate above floor to survive, got %+v", results)
	}
}

func TestClassifyAgreementBoost(t *testing.T) {
	t.Parallel()

	// Five keywords with one boundary hit gives keyword_score 0.2.
	topics := []Topic{{
		Key:       "economy",
		Keywords:  []string{"inflation", "naira", "forex", "subsidy", "tariff"},
		Embedding: axisVector(0),
	}}
	classifier := newTestClassifier(t, topics, Weights{Keyword: 0.6, Embedding: 0.4, MinScore: 0.01})

	results := classifier.Classify("inflation is biting", vectorWithCosine(0.3))
	if len(results) != 1 {
		t.Fatalf("expected one assignment, got %d", len(results))
	}

	got := results[0]
	if math.Abs(got.KeywordScore-0.2) > 1e-9 {
		t.Fatalf("expected keyword score 0.2, got %f", got.KeywordScore)
	}
	if math.Abs(got.EmbeddingScore-0.3) > 1e-9 {
		t.Fatalf("expected embedding score 0.3, got %f", got.EmbeddingScore)
	}

	base := 0.6*0.2 + 0.4*0.3
	want := base * 1.15
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Fatalf("expected agreement-boosted confidence %f, got %f", want, got.Confidence)
	}
}

func TestClassifyKeywordOnlyFallback(t *testing.T) {
	t.Parallel()

	topics := []Topic{{
		Key:       "economy",
		Keywords:  []string{"inflation"},
		Embedding: axisVector(0),
	}}
	classifier := newTestClassifier(t, topics, Weights{Keyword: 0.6, Embedding: 0.4, MinScore: 0.01})

	// No embedding at all.
	results := classifier.Classify("inflation is biting", nil)
	if len(results) != 1 {
		t.Fatalf("expected keyword-only fallback assignment, got %d", len(results))
	}
	if results[0].EmbeddingScore != 0 {
		t.Fatalf("expected embedding score fixed at 0, got %f", results[0].EmbeddingScore)
	}

	// Wrong-length embedding behaves the same as absent.
	results = classifier.Classify("inflation is biting", []float64{0.1, 0.2})
	if len(results) != 1 || results[0].EmbeddingScore != 0 {
		t.Fatalf("expected malformed embedding to degrade to keyword-only, got %+v", results)
	}
}

func TestClassifySortsAndCaps(t *testing.T) {
	t.Parallel()

	topics := []Topic{
		{Key: "a", Keywords: []string{"alpha"}},
		{Key: "b", Keywords: []string{"alpha", "beta"}},
		{Key: "c", Keywords: []string{"alpha", "beta", "gamma"}},
	}
	classifier := newTestClassifier(t, topics, Weights{Keyword: 1, MinScore: 0.01, MaxTopics: 2})

	results := classifier.Classify("alpha beta gamma together", nil)
	if len(results) != 2 {
		t.Fatalf("expected cap at 2 topics, got %d", len(results))
	}
	if results[0].Confidence < results[1].Confidence {
		t.Fatalf("expected descending confidence order: %+v", results)
	}
}

func TestParseKeywordGroups(t *testing.T) {
	t.Parallel()

	groups, err := ParseKeywordGroups([]byte(`[{"type":"AND","keywords":["Fuel","PRICE"]},{"type":"or","keywords":["strike"]}]`))
	if err != nil {
		t.Fatalf("parse keyword groups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Type != GroupTypeAnd || groups[0].Keywords[0] != "fuel" {
		t.Fatalf("expected normalized AND group, got %+v", groups[0])
	}

	if _, err := ParseKeywordGroups([]byte(`[{"type":"xor","keywords":["x"]}]`)); err == nil {
		t.Fatalf("expected error for invalid group type")
	}
}

func TestClassifyHighConfidenceBoost(t *testing.T) {
	t.Parallel()

	// A lone boundary hit on a single-keyword topic gives keyword_score 1.0,
	// which clears the configured keyword high-confidence bar. No embedding,
	// so the agreement boost cannot interfere.
	topics := []Topic{{
		Key:      "economy",
		Keywords: []string{"subsidy"},
	}}
	classifier := newTestClassifier(t, topics, Weights{
		Keyword:               0.6,
		Embedding:             0.4,
		MinScore:              0.01,
		KeywordHighConfidence: 0.6,
	})

	results := classifier.Classify("subsidy removal announced", nil)
	if len(results) != 1 {
		t.Fatalf("expected one assignment, got %d", len(results))
	}
	want := 0.6 * 1.0 * 1.05
	if math.Abs(results[0].Confidence-want) > 1e-9 {
		t.Fatalf("expected high-confidence boosted %f, got %f", want, results[0].Confidence)
	}
}

func TestClassifyHighConfidenceBoostStacksWithAgreement(t *testing.T) {
	t.Parallel()

	topics := []Topic{{
		Key:       "economy",
		Keywords:  []string{"inflation", "naira", "forex", "subsidy", "tariff"},
		Embedding: axisVector(0),
	}}
	classifier := newTestClassifier(t, topics, Weights{
		Keyword:                 0.6,
		Embedding:               0.4,
		MinScore:                0.01,
		EmbeddingHighConfidence: 0.55,
	})

	results := classifier.Classify("inflation is biting", vectorWithCosine(0.6))
	if len(results) != 1 {
		t.Fatalf("expected one assignment, got %d", len(results))
	}
	want := (0.6*0.2 + 0.4*0.6) * 1.15 * 1.05
	if math.Abs(results[0].Confidence-want) > 1e-9 {
		t.Fatalf("expected stacked boosts %f, got %f", want, results[0].Confidence)
	}
}

func TestSetWeightsAppliesToSubsequentClassify(t *testing.T) {
	t.Parallel()

	topics := []Topic{{
		Key:      "economy",
		Keywords: []string{"subsidy"},
	}}
	classifier := newTestClassifier(t, topics, Weights{Keyword: 0.6, Embedding: 0.4, MinScore: 0.01})

	if results := classifier.Classify("subsidy removal announced", nil); len(results) != 1 {
		t.Fatalf("expected one assignment before reconfiguration, got %d", len(results))
	}

	// A reloaded, stricter cutoff drops the same candidate.
	classifier.SetWeights(Weights{Keyword: 0.6, Embedding: 0.4, MinScore: 0.9})
	if results := classifier.Classify("subsidy removal announced", nil); len(results) != 0 {
		t.Fatalf("expected no assignments under raised min score, got %d", len(results))
	}
}
