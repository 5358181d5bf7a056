package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"searchcore/internal/model"
)

type memoryEntry struct {
	vec         []float32
	contentHash string
}

// MemoryStore is an in-process exact-scan similarity index. It serves the
// embedded mode and tests; the Postgres store provides indexed ANN at
// scale. A single RWMutex-guarded map assignment gives the atomic-swap
// guarantee per property id.
type MemoryStore struct {
	dims int

	mu       sync.RWMutex
	byLocale map[model.Locale]map[string]memoryEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty index with fixed dimensionality.
func NewMemoryStore(dims int) *MemoryStore {
	return &MemoryStore{
		dims:     dims,
		byLocale: make(map[model.Locale]map[string]memoryEntry),
	}
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, propertyID string, locale model.Locale, vec []float32, contentHash string) error {
	if len(vec) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dims)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.byLocale[locale]
	if !ok {
		entries = make(map[string]memoryEntry)
		s.byLocale[locale] = entries
	}
	entries[propertyID] = memoryEntry{vec: cp, contentHash: contentHash}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entries := range s.byLocale {
		delete(entries, propertyID)
	}
	return nil
}

// ContentHash implements Store.
func (s *MemoryStore) ContentHash(_ context.Context, propertyID string, locale model.Locale) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byLocale[locale][propertyID].contentHash, nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, queryVec []float32, locale model.Locale, candidateIDs map[string]struct{}, topK int, minSimilarity float64) ([]model.SimilarityMatch, error) {
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(queryVec), s.dims)
	}

	s.mu.RLock()
	entries := s.byLocale[locale]
	matches := make([]model.SimilarityMatch, 0, len(entries))
	for id, entry := range entries {
		if candidateIDs != nil {
			if _, ok := candidateIDs[id]; !ok {
				continue
			}
		}
		score := CosineSimilarity(queryVec, entry.vec)
		if score < minSimilarity {
			continue
		}
		matches = append(matches, model.SimilarityMatch{PropertyID: id, Score: score})
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].PropertyID < matches[j].PropertyID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CosineSimilarity computes the normalized dot product of two vectors.
// A zero vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
