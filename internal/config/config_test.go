package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:              "postgres://localhost/vantage",
		DBMinConns:               1,
		DBMaxConns:               4,
		SchedulerPollInterval:    15 * time.Second,
		CycleInterval:            30 * time.Minute,
		MaxConsecutiveCycles:     10,
		CycleResetInterval:       2 * time.Hour,
		LockMaxAge:               45 * time.Minute,
		CollectBatchSize:         2,
		CollectMaxWorkers:        4,
		ScoreBatchSize:           50,
		ScoreMaxWorkers:          4,
		LocationBatchSize:        50,
		LocationMaxWorkers:       2,
		KeywordWeight:            0.6,
		EmbeddingWeight:          0.4,
		MinTopicScore:            0.3,
		MaxTopics:                3,
		DedupSimilarityThreshold: 0.85,
		IssueSimilarityThreshold: 0.70,
		IssueCacheTTL:            30 * time.Second,
		CollectWindow:            24 * time.Hour,
		CollectLimit:             200,
		EmbeddingEndpoint:        "http://127.0.0.1:8844/embed",
		EmbeddingRPS:             4,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestTrackedRegionList(t *testing.T) {
	cfg := Config{TrackedRegions: " Lagos, abuja,, LAGOS , Kano "}

	got := cfg.TrackedRegionList()
	want := []string{"lagos", "abuja", "kano"}
	if len(got) != len(want) {
		t.Fatalf("TrackedRegionList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TrackedRegionList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTrackedRegionListEmpty(t *testing.T) {
	cfg := Config{}
	if got := cfg.TrackedRegionList(); len(got) != 0 {
		t.Fatalf("TrackedRegionList() = %v, want empty", got)
	}
}

func TestValidateRejectsBadCollectSettings(t *testing.T) {
	cfg := validConfig()
	cfg.CollectWindow = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero collect window")
	}

	cfg = validConfig()
	cfg.CollectLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero collect limit")
	}
}
