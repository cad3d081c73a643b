package application

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestions caps the "did you mean" list on a failed agent lookup.
const maxSuggestions = 3

// suggestAgentIDs returns up to maxSuggestions known IDs closest to id by
// edit distance. Candidates further than half the query length (minimum 2)
// are considered unrelated and dropped.
func suggestAgentIDs(id string, known []string) []string {
	type candidate struct {
		id   string
		dist int
	}

	limit := max(2, len([]rune(id))/2)
	needle := strings.ToLower(id)

	var candidates []candidate
	for _, k := range known {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(k))
		if d <= limit {
			candidates = append(candidates, candidate{id: k, dist: d})
		}
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]string, 0, min(len(candidates), maxSuggestions))
	for _, c := range candidates[:min(len(candidates), maxSuggestions)] {
		out = append(out, c.id)
	}
	return out
}
