// Package embedding wraps the external embedding capability with
// content-hash memoization and a bounded-concurrency batch path for
// reindexing.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"searchcore/internal/llm"
	"searchcore/internal/model"
)

// ContentHash fingerprints embedding source text. Unrelated field edits to
// a property leave the hash untouched, so they never force re-embedding.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func memoKey(locale model.Locale, hash string) string {
	return string(locale) + "|" + hash
}

// Service converts text to vectors, memoized by (locale, content hash).
type Service struct {
	embedder  llm.Embedder
	dims      int
	batchSize int

	pool           *ants.Pool
	maxRetries     int
	retryBaseDelay time.Duration

	mu   sync.RWMutex
	memo map[string][]float32

	logger *slog.Logger
}

// Options configures a Service.
type Options struct {
	Dimensions     int
	BatchSize      int
	PoolSize       int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Logger         *slog.Logger
}

// NewService creates a memoizing embedding service with a worker pool for
// the batch path. Close releases the pool.
func NewService(embedder llm.Embedder, opts Options) (*Service, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}

	return &Service{
		embedder:       embedder,
		dims:           opts.Dimensions,
		batchSize:      opts.BatchSize,
		pool:           pool,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		memo:           make(map[string][]float32),
		logger:         opts.Logger,
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Dimensions returns the configured vector size D.
func (s *Service) Dimensions() int { return s.dims }

// Embed converts one text to a vector, hitting the memo first. The caller
// passes normalized text; an error here is a degradation signal for the
// orchestrator, never a request failure.
func (s *Service) Embed(ctx context.Context, text string, locale model.Locale) ([]float32, error) {
	hash := ContentHash(text)
	key := memoKey(locale, hash)

	s.mu.RLock()
	cached, ok := s.memo[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{text}, locale)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != s.dims {
		return nil, fmt.Errorf("provider returned malformed embedding for locale %s", locale)
	}

	s.mu.Lock()
	s.memo[key] = vecs[0]
	s.mu.Unlock()
	return vecs[0], nil
}

// EmbedBatch converts many texts with bounded concurrency and exponential
// backoff against the provider. Results align with the input order; texts
// already memoized are not re-sent.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Resolve memo hits and collect the misses.
	var missIdx []int
	s.mu.RLock()
	for i, t := range texts {
		if vec, ok := s.memo[memoKey(locale, ContentHash(t))]; ok {
			out[i] = vec
		} else {
			missIdx = append(missIdx, i)
		}
	}
	s.mu.RUnlock()

	if len(missIdx) == 0 {
		return out, nil
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) { errOnce.Do(func() { firstErr = err }) }

	for start := 0; start < len(missIdx); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		chunk := missIdx[start:end]

		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()

			chunkTexts := make([]string, len(chunk))
			for i, idx := range chunk {
				chunkTexts[i] = texts[idx]
			}

			var vecs [][]float32
			err := RetryWithBackoff(ctx, func() error {
				var embedErr error
				vecs, embedErr = s.embedder.EmbedTexts(ctx, chunkTexts, locale)
				return embedErr
			}, s.maxRetries, s.retryBaseDelay)
			if err != nil {
				fail(fmt.Errorf("batch embedding failed: %w", err))
				return
			}
			if len(vecs) != len(chunkTexts) {
				fail(fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunkTexts), len(vecs)))
				return
			}

			s.mu.Lock()
			for i, idx := range chunk {
				if len(vecs[i]) != s.dims {
					s.mu.Unlock()
					fail(fmt.Errorf("provider returned %d-dim vector, want %d", len(vecs[i]), s.dims))
					return
				}
				out[idx] = vecs[i]
				s.memo[memoKey(locale, ContentHash(texts[idx]))] = vecs[i]
			}
			s.mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit embedding chunk: %w", submitErr))
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
