package match

import (
	"cmp"
	"slices"
	"time"

	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Result is one ranked match.
type Result struct {
	Profile profile.Profile
	Score   float64
	Rank    int
}

// Outcome is the full answer to a match query.
type Outcome struct {
	Mode       Mode
	QueryText  string // text actually embedded, empty when a stored vector was reused
	Filters    Filters
	Candidates int // eligible candidates seen in the final search round
	Took       time.Duration
	Results    []Result
}

// Rank orders results by score descending, then id ascending, drops duplicate
// ids (keeping the best score), trims to topK, and assigns ranks from 1.
func Rank(results []Result, topK int) []Result {
	if topK <= 0 || len(results) == 0 {
		return []Result{}
	}

	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, compareResults)

	out := make([]Result, 0, min(topK, len(sorted)))
	seen := make(map[string]struct{}, len(sorted))
	for _, r := range sorted {
		id := r.Profile.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r.Rank = len(out) + 1
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out
}

func compareResults(a, b Result) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Profile.ID(), b.Profile.ID())
}

// Hit is a raw nearest-neighbour match before hydration and filtering.
type Hit struct {
	ProfileID string
	Score     float64
}
