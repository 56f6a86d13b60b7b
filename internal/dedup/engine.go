package dedup

import (
	"github.com/rs/zerolog"
)

// Record is the text surface of one incoming mention.
type Record struct {
	Text        string
	Content     string
	Title       string
	Description string
}

// CorpusEntry is one previously stored mention to dedup against.
type CorpusEntry struct {
	MentionID   int64
	Text        string
	Content     string
	Title       string
	Description string
}

// Stats reports the partition of one dedup pass so callers can log a
// duplication rate.
type Stats struct {
	Total              int
	Unique             int
	ExternalDuplicates int
	InternalDuplicates int
}

// Result partitions the incoming batch. DuplicateMap is keyed by the index of
// the new record and lists the existing mention IDs it duplicates; it is
// rebuilt every cycle and never persisted.
type Result struct {
	UniqueIndexes    []int
	DuplicateIndexes []int
	DuplicateMap     map[int][]int64
	Stats            Stats
}

type Options struct {
	FuzzyEnabled   bool
	FuzzyThreshold float64
}

// Engine compares incoming records against the existing corpus by normalized
// text. Exact index probing is the fast path; the fuzzy ratio scan is opt-in.
type Engine struct {
	fuzzyEnabled   bool
	fuzzyThreshold float64
	logger         zerolog.Logger
}

func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	threshold := opts.FuzzyThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &Engine{
		fuzzyEnabled:   opts.FuzzyEnabled,
		fuzzyThreshold: threshold,
		logger:         logger,
	}
}

// PrimaryText returns the first non-empty field of a record in priority order:
// text, content, title, description.
func (r Record) PrimaryText() string {
	for _, candidate := range []string{r.Text, r.Content, r.Title, r.Description} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func (e CorpusEntry) primaryText() string {
	for _, candidate := range []string{e.Text, e.Content, e.Title, e.Description} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// BuildIndex maps normalized corpus text to the mention IDs carrying it.
// Single pass over the corpus.
func BuildIndex(corpus []CorpusEntry) map[string][]int64 {
	index := make(map[string][]int64, len(corpus))
	for _, entry := range corpus {
		normalized := Normalize(entry.primaryText())
		if normalized == "" {
			continue
		}
		index[normalized] = append(index[normalized], entry.MentionID)
	}
	return index
}

// Deduplicate partitions records into unique entries and duplicates of the
// existing corpus, removing internal repeats within the batch itself so only
// the first occurrence survives.
func (e *Engine) Deduplicate(records []Record, corpus []CorpusEntry) Result {
	index := BuildIndex(corpus)

	result := Result{
		DuplicateMap: make(map[int][]int64),
	}
	result.Stats.Total = len(records)

	seen := make(map[string]struct{}, len(records))
	for i, record := range records {
		normalized := Normalize(record.PrimaryText())
		if normalized == "" {
			// Nothing to compare on; treat as unique and let downstream
			// validation decide what to do with an empty record.
			result.UniqueIndexes = append(result.UniqueIndexes, i)
			result.Stats.Unique++
			continue
		}

		if existingIDs, ok := index[normalized]; ok {
			result.DuplicateIndexes = append(result.DuplicateIndexes, i)
			result.DuplicateMap[i] = append([]int64(nil), existingIDs...)
			result.Stats.ExternalDuplicates++
			continue
		}

		if e.fuzzyEnabled {
			if ids := e.fuzzyProbe(normalized, index); len(ids) > 0 {
				result.DuplicateIndexes = append(result.DuplicateIndexes, i)
				result.DuplicateMap[i] = ids
				result.Stats.ExternalDuplicates++
				continue
			}
		}

		if _, repeated := seen[normalized]; repeated {
			result.DuplicateIndexes = append(result.DuplicateIndexes, i)
			result.Stats.InternalDuplicates++
			continue
		}
		seen[normalized] = struct{}{}

		result.UniqueIndexes = append(result.UniqueIndexes, i)
		result.Stats.Unique++
	}

	e.logger.Debug().
		Int("total", result.Stats.Total).
		Int("unique", result.Stats.Unique).
		Int("external_duplicates", result.Stats.ExternalDuplicates).
		Int("internal_duplicates", result.Stats.InternalDuplicates).
		Msg("dedup pass completed")

	return result
}

func (e *Engine) fuzzyProbe(normalized string, index map[string][]int64) []int64 {
	for existing, ids := range index {
		if IsNearDuplicate(normalized, existing, e.fuzzyThreshold) {
			return append([]int64(nil), ids...)
		}
	}
	return nil
}
