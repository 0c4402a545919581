package chunker

import (
	"math"
	"slices"
	"strings"
	"unicode"
)

// termCounts is a bag-of-words vector.
type termCounts map[string]int

func countTerms(text string) termCounts {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	counts := make(termCounts, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}

// cosine returns the cosine similarity of two count vectors. Sums are
// integers, so the result does not depend on map iteration order.
func cosine(a, b termCounts) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot, na, nb int
	for term, ca := range a {
		dot += ca * b[term]
		na += ca * ca
	}
	for _, cb := range b {
		nb += cb * cb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float64(dot) / math.Sqrt(float64(na)*float64(nb))
}

// percentile returns the pct-th percentile of values using linear
// interpolation between closest ranks.
func percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
