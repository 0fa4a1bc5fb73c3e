package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{
			name:     "identical sequences",
			a:        []string{"await page.goto('/');", "await page.click('#go');"},
			b:        []string{"await page.goto('/');", "await page.click('#go');"},
			expected: 1.0,
		},
		{
			name:     "both empty",
			a:        nil,
			b:        nil,
			expected: 1.0,
		},
		{
			name:     "completely different single lines",
			a:        []string{"aaaa"},
			b:        []string{"zzzz"},
			expected: 0.0,
		},
		{
			name:     "one line empty",
			a:        []string{"abcd"},
			b:        []string{""},
			expected: 0.0,
		},
		{
			name: "half the lines match",
			a:    []string{"same", "aaaa"},
			b:    []string{"same", "zzzz"},
			// (1.0 + 0.0) / 2
			expected: 0.5,
		},
		{
			name: "length mismatch pads with empty lines",
			a:    []string{"same"},
			b:    []string{"same", "zzzz"},
			// second pair is "" vs "zzzz" -> 0.0
			expected: 0.5,
		},
		{
			name: "single character substitution",
			a:    []string{"abcdefghij"},
			b:    []string{"abcdefghiX"},
			// 1 - 1/10
			expected: 0.9,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.expected, Similarity(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSimilarity_Symmetry(t *testing.T) {
	t.Parallel()

	a := []string{"await page.fill('#username', 'alice');", "await submit();"}
	b := []string{"await page.fill('#user', 'alice');"}
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
}

func TestSimilarity_Range(t *testing.T) {
	t.Parallel()

	pairs := [][2][]string{
		{{"x"}, {"completely different and much longer line"}},
		{{"short"}, {"short", "extra", "lines"}},
		{{"日本語のテキスト"}, {"日本語のテクスト"}},
	}
	for _, p := range pairs {
		score := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestSimilarity_UnicodeCountsRunes(t *testing.T) {
	t.Parallel()

	// One rune differs out of eight; byte-based distance would score lower.
	score := Similarity([]string{"日本語のテキスト"}, []string{"日本語のテクスト"})
	assert.InDelta(t, 1.0-1.0/8.0, score, 1e-9)
}
