package dedup

// minFuzzyLength is the shortest text eligible for ratio matching; anything
// shorter must match exactly.
const minFuzzyLength = 10

// SimilarityRatio returns a sequence-similarity ratio in [0,1] computed from
// the total length of the recursively longest matching blocks between a and b
// (2*M / (len(a)+len(b))).
func SimilarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	matched := matchingBlockLength([]rune(a), []rune(b))
	return 2 * float64(matched) / float64(len([]rune(a))+len([]rune(b)))
}

// IsNearDuplicate reports whether two normalized texts are close enough to be
// treated as the same mention. Texts under the minimum fuzzy length require an
// exact match.
func IsNearDuplicate(a, b string, threshold float64) bool {
	if a == b {
		return a != ""
	}
	if len(a) < minFuzzyLength || len(b) < minFuzzyLength {
		return false
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return SimilarityRatio(a, b) >= threshold
}

// matchingBlockLength sums the longest common substring of a and b plus,
// recursively, the matches on either side of it.
func matchingBlockLength(a, b []rune) int {
	aStart, bStart, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingBlockLength(a[:aStart], b[:bStart])
	total += matchingBlockLength(a[aStart+size:], b[bStart+size:])
	return total
}

func longestCommonSubstring(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// prev[j] is the match length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	current := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				current[j] = prev[j-1] + 1
				if current[j] > size {
					size = current[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				current[j] = 0
			}
		}
		prev, current = current, prev
	}
	return aStart, bStart, size
}
