package patch

// DefaultSimilarityThreshold is the acceptance bar for the fuzzy match
// strategy. Windows scoring below it are rejected rather than guessed at.
const DefaultSimilarityThreshold = 0.80

// Similarity scores how alike two line sequences are, in [0, 1]. It is a
// pure function: the mean, over paired lines, of the normalized Levenshtein
// ratio of each pair. Sequences of unequal length are padded with empty
// lines, so extra lines count fully against the score.
func Similarity(a, b []string) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return 1.0
	}

	var total float64
	for i := 0; i < n; i++ {
		var left, right string
		if i < len(a) {
			left = a[i]
		}
		if i < len(b) {
			right = b[i]
		}
		total += lineRatio(left, right)
	}
	return total / float64(n)
}

// lineRatio is 1 - editDistance/maxLen for a single pair of lines.
func lineRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the edit distance between two rune slices using the
// two-row dynamic programming formulation.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
