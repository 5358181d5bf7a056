// Package mock provides deterministic test doubles for the llm interfaces.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"searchcore/internal/llm"
	"searchcore/internal/model"
)

// Extractor is a test double for llm.Extractor with injectable behavior.
type Extractor struct {
	// ExtractFunc is called if set; otherwise an empty extraction with
	// confidence 1.0 is returned.
	ExtractFunc func(ctx context.Context, text string, locale model.Locale) (*llm.IntentExtraction, error)

	mu    sync.Mutex
	calls int
}

// ExtractIntent implements llm.Extractor.
func (m *Extractor) ExtractIntent(ctx context.Context, text string, locale model.Locale) (*llm.IntentExtraction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text, locale)
	}
	return &llm.IntentExtraction{Confidence: 1.0}, nil
}

// Calls returns how many times ExtractIntent was invoked.
func (m *Extractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embedder is a test double for llm.Embedder. By default it produces
// deterministic unit vectors derived from the text hash, so identical texts
// embed identically and similarity math stays reproducible.
type Embedder struct {
	// EmbedFunc is called if set.
	EmbedFunc func(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error)

	// Dimensions of generated vectors. Defaults to 8.
	Dimensions int

	mu    sync.Mutex
	calls int
}

// EmbedTexts implements llm.Embedder.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts, locale)
	}

	dims := m.Dimensions
	if dims == 0 {
		dims = 8
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = DeterministicVector(t, dims)
	}
	return out, nil
}

// Calls returns how many times EmbedTexts was invoked.
func (m *Embedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// DeterministicVector derives a unit-length vector from the text hash.
func DeterministicVector(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		// xorshift over the seed keeps components reproducible.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
