package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Mention text skews short and code-switched, so the detector is restricted
// to the languages the monitored platforms actually carry and requires a
// minimum relative distance before trusting a guess. Short ambiguous samples
// come back empty rather than wrong.
var monitoredLanguages = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Arabic,
	lingua.German,
	lingua.Italian,
	lingua.Dutch,
	lingua.Turkish,
	lingua.Swahili,
	lingua.Yoruba,
	lingua.Somali,
}

const minSampleLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minSampleLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(monitoredLanguages...).
			WithMinimumRelativeDistance(0.25).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
