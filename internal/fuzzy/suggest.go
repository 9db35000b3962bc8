// Package fuzzy suggests likely search terms for queries that
// returned nothing.
package fuzzy

import "strings"

// Distance computes the Levenshtein edit distance between two strings
// with the classic dynamic-programming table.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Suggest returns the word from the candidate subjects closest to the
// query, or "" when nothing qualifies. A word qualifies when its edit
// distance to the lower-cased query is at most min(2, len(query)/2);
// the first word seen at the strictly smallest distance wins. The
// suggestion is advisory and must be confirmed by the caller before
// being applied.
func Suggest(query string, subjects []string) string {
	queryLower := strings.ToLower(query)
	maxAllowed := min(2, len([]rune(queryLower))/2)

	best := ""
	bestScore := -1

	for _, subject := range subjects {
		for _, word := range strings.Fields(strings.ToLower(subject)) {
			if len([]rune(word)) < 3 {
				continue
			}
			d := Distance(queryLower, word)
			if d > maxAllowed {
				continue
			}
			if bestScore < 0 || d < bestScore {
				bestScore = d
				best = word
			}
		}
	}

	return best
}
