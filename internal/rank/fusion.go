// Package rank fuses the structured-filter and vector-similarity signals
// into one deterministic total order.
package rank

import (
	"sort"

	"searchcore/internal/model"
)

// Weights are the fusion coefficients. They are documented placeholders
// with no empirical basis, hence tunable rather than constants.
type Weights struct {
	Filter     float64
	Similarity float64
}

// DefaultWeights is the documented 0.4/0.6 split.
var DefaultWeights = Weights{Filter: 0.4, Similarity: 0.6}

// Fuser combines candidate and similarity signals into ranked results.
type Fuser struct {
	weights Weights
}

// NewFuser creates a fuser with the given weights.
func NewFuser(weights Weights) *Fuser {
	return &Fuser{weights: weights}
}

// Fuse produces the ranked list for the filter-gated candidate set.
//
// Structured filters are a hard gate: a property matched only by vector
// similarity never appears. With a semantic signal present, candidates
// score weights.Filter*1.0 + weights.Similarity*similarity (similarity 0
// when the vector stage produced no match for the candidate). Without one,
// the score derives purely from listing priority.
//
// Ties on the final score resolve by listing priority descending, then
// created-at descending, then property id ascending. The chain yields a
// total order, so repeated invocations over the same inputs produce
// identical rankings.
func (f *Fuser) Fuse(
	candidateIDs map[string]struct{},
	matches []model.SimilarityMatch,
	metadata map[string]*model.PropertyRecord,
	semantic bool,
) []model.RankedResult {
	simByID := make(map[string]float64, len(matches))
	for _, m := range matches {
		simByID[m.PropertyID] = m.Score
	}

	results := make([]model.RankedResult, 0, len(candidateIDs))
	for id := range candidateIDs {
		rec := metadata[id]
		if rec == nil || !rec.Searchable() {
			continue
		}

		var r model.RankedResult
		r.PropertyID = id
		if semantic {
			sim := simByID[id]
			r.Breakdown = model.ScoreBreakdown{FilterBoost: f.weights.Filter, Similarity: sim}
			r.FinalScore = f.weights.Filter*1.0 + f.weights.Similarity*sim
		} else {
			r.FinalScore = float64(rec.ListingPriority)
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		ra, rb := metadata[a.PropertyID], metadata[b.PropertyID]
		if ra.ListingPriority != rb.ListingPriority {
			return ra.ListingPriority > rb.ListingPriority
		}
		if !ra.CreatedAt.Equal(rb.CreatedAt) {
			return ra.CreatedAt.After(rb.CreatedAt)
		}
		return a.PropertyID < b.PropertyID
	})

	for i := range results {
		results[i].Rank = i
	}
	return results
}
