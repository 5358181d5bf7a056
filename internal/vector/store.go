// Package vector provides approximate-nearest-neighbor similarity search
// over per-locale property embeddings.
package vector

import (
	"context"
	"errors"

	"searchcore/internal/model"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// store's configured dimensionality.
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

// Store is the similarity index contract.
//
// When candidateIDs is non-nil the search is restricted to that set
// (filter-then-vector); a nil set searches the whole index
// (vector-then-filter, the caller intersects afterwards). Matches below
// minSimilarity are excluded entirely, a hard cut rather than a ranking
// penalty. Results come back sorted by score descending, ties broken by
// property id ascending.
type Store interface {
	Search(ctx context.Context, queryVec []float32, locale model.Locale, candidateIDs map[string]struct{}, topK int, minSimilarity float64) ([]model.SimilarityMatch, error)

	// Upsert atomically swaps the embedding for (property, locale).
	// Readers never observe the old and new vector together, nor a gap
	// between them.
	Upsert(ctx context.Context, propertyID string, locale model.Locale, vec []float32, contentHash string) error

	// Delete removes every locale's vector for the property.
	Delete(ctx context.Context, propertyID string) error

	// ContentHash returns the stored source hash for (property, locale),
	// empty when the pair is not indexed. The reindexer compares it with
	// the current text hash to find stale vectors.
	ContentHash(ctx context.Context, propertyID string, locale model.Locale) (string, error)
}
