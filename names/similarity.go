package names

import (
	"strings"

	"github.com/xrash/smetrics"
)

const (
	editDistanceWeight = 0.4
	affixWeight        = 0.3
	containmentWeight  = 0.3
)

// combinedSimilarity blends edit-distance similarity, an affix-aware
// Jaro-Winkler score, and substring containment into one [0,1] score.
// Inputs are compared in slug form so separators and case never count
// against a match.
func combinedSimilarity(a string, b string) float64 {
	left := Slugify(a)
	right := Slugify(b)
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 1
	}

	return editDistanceWeight*editSimilarity(left, right) +
		affixWeight*smetrics.JaroWinkler(left, right, 0.7, 4) +
		containmentWeight*containmentSimilarity(left, right)
}

func editSimilarity(a string, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := smetrics.WagnerFischer(a, b, 1, 1, 1)
	if distance >= longest {
		return 0
	}
	return 1 - float64(distance)/float64(longest)
}

func containmentSimilarity(a string, b string) float64 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}
	return tokenOverlap(a, b)
}

func tokenOverlap(a string, b string) float64 {
	left := strings.Split(a, "_")
	right := strings.Split(b, "_")
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(left))
	for _, token := range left {
		seen[token] = struct{}{}
	}
	shared := 0
	for _, token := range right {
		if _, ok := seen[token]; ok {
			shared++
		}
	}
	union := len(left) + len(right) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
