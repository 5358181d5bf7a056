// Package cache implements the query-fingerprint result cache with TTL
// jitter and event-driven invalidation. Cache failures are never allowed
// to become search failures: every backend error turns into a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"searchcore/internal/model"
)

// CachedResult is what one fingerprint resolves to.
type CachedResult struct {
	Results            []model.RankedResult `json:"results"`
	TotalEstimate      int                  `json:"total_estimate"`
	InterpretedFilters *model.FilterSet     `json:"interpreted_filters,omitempty"`
	ReferencedIDs      []string             `json:"referenced_ids"`
	CreatedAt          time.Time            `json:"created_at"`
}

// fingerprintInput pins the field order the hash is computed over.
type fingerprintInput struct {
	Query   string           `json:"query"`
	Locale  model.Locale     `json:"locale"`
	Filters *model.FilterSet `json:"filters"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// Fingerprint hashes the semantically relevant request inputs into a
// stable cache key. Only explicit filters take part; extracted filters are
// derived from the query text already present in the hash.
func Fingerprint(normalizedQuery string, locale model.Locale, explicit *model.FilterSet, page, perPage int) string {
	payload, _ := json.Marshal(fingerprintInput{
		Query:   normalizedQuery,
		Locale:  locale,
		Filters: explicit,
		Page:    page,
		PerPage: perPage,
	})
	sum := sha256.Sum256(payload)
	return "q:" + hex.EncodeToString(sum[:])
}

// ResultCache is the domain cache over a generic Backend. It keeps an
// in-process reverse index from property id to the fingerprints that
// referenced it, so one change event evicts exactly the affected entries.
type ResultCache struct {
	backend Backend
	ttl     time.Duration
	jitter  time.Duration
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu   sync.Mutex
	refs map[string]map[string]time.Time // property id -> fingerprint -> entry created-at
}

// New creates a ResultCache with the given base TTL and jitter span.
func New(backend Backend, ttl, jitter time.Duration, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		jitter:  jitter,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		refs:    make(map[string]map[string]time.Time),
	}
}

// Get resolves a fingerprint. The boolean is false on miss and on any
// backend error; the caller computes live either way.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (*CachedResult, bool) {
	raw, err := c.backend.Get(ctx, fingerprint)
	if err == ErrNotFound {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read bypassed", "error", err)
		return nil, false
	}
	var cached CachedResult
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn("corrupt cache entry dropped", "fingerprint", fingerprint)
		_ = c.backend.Delete(ctx, fingerprint)
		return nil, false
	}
	return &cached, true
}

// Put stores a result best-effort. Backend failures are logged and
// swallowed.
func (c *ResultCache) Put(ctx context.Context, fingerprint string, result CachedResult) {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.backend.Set(ctx, fingerprint, raw, c.jitteredTTL()); err != nil {
		c.logger.Warn("cache write bypassed", "error", err)
		return
	}

	c.mu.Lock()
	for _, id := range result.ReferencedIDs {
		byFp, ok := c.refs[id]
		if !ok {
			byFp = make(map[string]time.Time)
			c.refs[id] = byFp
		}
		byFp[fingerprint] = result.CreatedAt
	}
	c.mu.Unlock()
}

// HandleEvent evicts every entry that referenced the changed property and
// was created before the mutation.
func (c *ResultCache) HandleEvent(ctx context.Context, ev model.ChangeEvent) {
	c.mu.Lock()
	byFp := c.refs[ev.PropertyID]
	stale := make([]string, 0, len(byFp))
	for fp, createdAt := range byFp {
		if createdAt.Before(ev.LastModifiedAt) {
			stale = append(stale, fp)
			delete(byFp, fp)
		}
	}
	if len(byFp) == 0 {
		delete(c.refs, ev.PropertyID)
	}
	c.mu.Unlock()

	for _, fp := range stale {
		if err := c.backend.Delete(ctx, fp); err != nil {
			c.logger.Warn("cache invalidation failed, entry will age out", "error", err)
		}
	}
}

// Run consumes the repository's change-event stream until the context ends
// or the channel closes, pruning the reverse index as entries age out.
func (c *ResultCache) Run(ctx context.Context, events <-chan model.ChangeEvent) {
	janitor := time.NewTicker(c.ttl + c.jitter)
	defer janitor.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ctx, ev)
		case <-janitor.C:
			c.pruneRefs()
		}
	}
}

// pruneRefs drops reverse-index entries whose backing cache entry has
// certainly expired.
func (c *ResultCache) pruneRefs() {
	cutoff := time.Now().Add(-(c.ttl + c.jitter))
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, byFp := range c.refs {
		for fp, createdAt := range byFp {
			if createdAt.Before(cutoff) {
				delete(byFp, fp)
			}
		}
		if len(byFp) == 0 {
			delete(c.refs, id)
		}
	}
}

// jitteredTTL spreads expiry across ttl ± jitter so entries written in a
// burst do not all expire together.
func (c *ResultCache) jitteredTTL() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	c.rngMu.Lock()
	offset := time.Duration(c.rng.Int63n(int64(2*c.jitter))) - c.jitter
	c.rngMu.Unlock()
	return c.ttl + offset
}
