// Package similarity holds the scoring and filtering shared by index sinks
// that search in process.
package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Cosine returns the cosine similarity of two vectors of equal length.
// Zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Matches reports whether metadata satisfies an equality filter.
// A list-valued field matches when it contains the filter value.
func Matches(md map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := md[key]
		if !ok {
			return false
		}
		if !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(got, want any) bool {
	ws := fmt.Sprint(want)
	switch v := got.(type) {
	case []string:
		for _, s := range v {
			if s == ws {
				return true
			}
		}
		return false
	case []any:
		for _, s := range v {
			if fmt.Sprint(s) == ws {
				return true
			}
		}
		return false
	default:
		return fmt.Sprint(v) == ws
	}
}

// TopK sorts matches by descending score, breaking ties by id, and keeps k.
func TopK(matches []domain.Match, k int) []domain.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
