// Package search coordinates the full query pipeline: interpretation,
// embedding, structured filtering, similarity search, fusion and caching.
// The guiding rule is degrade, don't fail: apart from malformed caller
// input, every stage failure narrows the response instead of erroring it.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"searchcore/internal/cache"
	"searchcore/internal/embedding"
	"searchcore/internal/filter"
	"searchcore/internal/interpreter"
	"searchcore/internal/metrics"
	"searchcore/internal/model"
	"searchcore/internal/rank"
	"searchcore/internal/repository"
	"searchcore/internal/utils"
	"searchcore/internal/vector"
)

// Config tunes the orchestrator's budgets and vector-stage limits.
type Config struct {
	RequestBudget   time.Duration
	EmbedBudget     time.Duration
	VectorBudget    time.Duration
	TopK            int
	MinSimilarity   float64
	CandidateCutoff int
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	interp  *interpreter.Interpreter
	embeds  *embedding.Service
	filters filter.Engine
	vectors vector.Store
	repo    repository.PropertyRepository
	sink    repository.FeedbackSink
	fuser   *rank.Fuser
	results *cache.ResultCache
	metrics metrics.Collector
	cfg     Config
	logger  *slog.Logger
}

// Options carries the orchestrator's collaborators. Sink, Cache and
// Metrics are optional; Embeds may be nil when no embedding provider is
// configured, which keeps every search on the filter-only path.
type Options struct {
	Interpreter *interpreter.Interpreter
	Embeds      *embedding.Service
	Filters     filter.Engine
	Vectors     vector.Store
	Repo        repository.PropertyRepository
	Sink        repository.FeedbackSink
	Fuser       *rank.Fuser
	Cache       *cache.ResultCache
	Metrics     metrics.Collector
	Config      Config
	Logger      *slog.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopCollector()
	}
	if opts.Fuser == nil {
		opts.Fuser = rank.NewFuser(rank.DefaultWeights)
	}
	if opts.Config.RequestBudget <= 0 {
		opts.Config.RequestBudget = 3 * time.Second
	}
	if opts.Config.TopK <= 0 {
		opts.Config.TopK = 200
	}
	if opts.Config.CandidateCutoff <= 0 {
		opts.Config.CandidateCutoff = 5000
	}
	return &Orchestrator{
		interp:  opts.Interpreter,
		embeds:  opts.Embeds,
		filters: opts.Filters,
		vectors: opts.Vectors,
		repo:    opts.Repo,
		sink:    opts.Sink,
		fuser:   opts.Fuser,
		results: opts.Cache,
		metrics: opts.Metrics,
		cfg:     opts.Config,
		logger:  opts.Logger,
	}
}

// Search runs the pipeline for one request. The only returned errors are
// caller-input problems from Normalize; everything downstream degrades.
func (o *Orchestrator) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	if err := req.Normalize(); err != nil {
		o.metrics.IncSearch("invalid")
		return nil, err
	}

	started := time.Now()
	searchID := uuid.NewString()
	log := o.logger.With("search_id", searchID, "locale", req.Locale)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestBudget)
	defer cancel()

	normalized := utils.NormalizeQuery(req.QueryText())
	fingerprint := cache.Fingerprint(normalized, req.Locale, req.Filters, req.Page, req.PerPage)

	if o.results != nil {
		if hit, ok := o.results.Get(ctx, fingerprint); ok {
			o.metrics.IncCache("hit")
			o.metrics.IncSearch("ok")
			resp := &model.SearchResponse{
				Results:            hit.Results,
				TotalEstimate:      hit.TotalEstimate,
				InterpretedFilters: hit.InterpretedFilters,
				SearchID:           searchID,
				TookMs:             time.Since(started).Milliseconds(),
				CacheHit:           true,
			}
			o.logSearch(searchID, normalized, req.Locale, len(resp.Results), resp.TookMs)
			return resp, nil
		}
		o.metrics.IncCache("miss")
	}

	// Interpretation never fails; an empty intent is the worst case.
	var intent model.ExtractedIntent
	if normalized != "" && o.interp != nil {
		stage := time.Now()
		intent = o.interp.Interpret(ctx, normalized, req.Locale)
		o.metrics.ObserveStage("interpret", time.Since(stage))
	} else {
		intent = model.EmptyIntent(normalized)
	}

	var interpreted *model.FilterSet
	if intent.HasFilters() {
		f := intent.Filters
		interpreted = &f
	}
	effective := req.Filters.Merge(interpreted)

	degraded := false

	// Embedding and structured filtering have no data dependency, so they
	// run concurrently. Only the filter stage propagates its error through
	// the group; an embedding failure just drops the semantic signal.
	var (
		queryVec   []float32
		candidates map[string]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	if normalized != "" && o.embeds != nil {
		g.Go(func() error {
			stage := time.Now()
			embedCtx := gctx
			if o.cfg.EmbedBudget > 0 {
				var cancel context.CancelFunc
				embedCtx, cancel = context.WithTimeout(gctx, o.cfg.EmbedBudget)
				defer cancel()
			}
			vec, err := o.embeds.Embed(embedCtx, normalized, req.Locale)
			o.metrics.ObserveStage("embed", time.Since(stage))
			if err != nil {
				log.Warn("query embedding unavailable, continuing filter-only", "error", err)
				o.metrics.IncDegraded("embedding")
				return nil
			}
			queryVec = vec
			return nil
		})
	}
	g.Go(func() error {
		stage := time.Now()
		matched, err := o.filters.Match(gctx, effective)
		o.metrics.ObserveStage("filter", time.Since(stage))
		if err != nil {
			return err
		}
		candidates = matched
		return nil
	})
	if err := g.Wait(); err != nil {
		// Structured filtering is the correctness gate; without it the
		// engine cannot say anything true, so the response is empty
		// rather than wrong.
		log.Error("filter engine unavailable", "error", err)
		o.metrics.IncDegraded("filter")
		o.metrics.IncSearch("degraded")
		resp := &model.SearchResponse{
			Results:            []model.RankedResult{},
			DegradedMode:       true,
			InterpretedFilters: interpreted,
			SearchID:           searchID,
			TookMs:             time.Since(started).Milliseconds(),
		}
		o.logSearch(searchID, normalized, req.Locale, 0, resp.TookMs)
		return resp, nil
	}
	if normalized != "" && queryVec == nil {
		degraded = true
	}

	matches, vecDegraded := o.similarity(ctx, log, queryVec, req.Locale, candidates)
	degraded = degraded || vecDegraded
	semantic := queryVec != nil && !vecDegraded

	stage := time.Now()
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	metadata, err := o.repo.GetByIDs(ctx, ids)
	if err != nil {
		log.Error("metadata fetch failed", "error", err)
		o.metrics.IncDegraded("repository")
		o.metrics.IncSearch("degraded")
		resp := &model.SearchResponse{
			Results:            []model.RankedResult{},
			DegradedMode:       true,
			InterpretedFilters: interpreted,
			SearchID:           searchID,
			TookMs:             time.Since(started).Milliseconds(),
		}
		o.logSearch(searchID, normalized, req.Locale, 0, resp.TookMs)
		return resp, nil
	}

	ranked := o.fuser.Fuse(candidates, matches, metadata, semantic)
	o.metrics.ObserveStage("fuse", time.Since(stage))

	total := len(ranked)
	page := paginate(ranked, req.Page, req.PerPage)

	resp := &model.SearchResponse{
		Results:            page,
		TotalEstimate:      total,
		DegradedMode:       degraded,
		InterpretedFilters: interpreted,
		SearchID:           searchID,
		TookMs:             time.Since(started).Milliseconds(),
	}

	if degraded {
		o.metrics.IncSearch("degraded")
	} else {
		o.metrics.IncSearch("ok")
		// Degraded responses are deliberately not cached: they would pin
		// a lower-quality answer for the full TTL.
		if o.results != nil {
			refIDs := make([]string, len(page))
			for i, r := range page {
				refIDs[i] = r.PropertyID
			}
			o.results.Put(ctx, fingerprint, cache.CachedResult{
				Results:            page,
				TotalEstimate:      total,
				InterpretedFilters: interpreted,
				ReferencedIDs:      refIDs,
				CreatedAt:          started,
			})
			o.metrics.IncCache("store")
		}
	}

	o.metrics.ObserveStage("total", time.Since(started))
	o.logSearch(searchID, normalized, req.Locale, len(page), resp.TookMs)
	log.Info("search served",
		"results", len(page),
		"total", total,
		"degraded", degraded,
		"semantic", semantic,
		"took_ms", resp.TookMs)
	return resp, nil
}

// similarity runs the vector stage, picking filter-then-vector when the
// candidate set is small enough to restrict the index scan, and
// vector-then-filter with an in-process intersection otherwise. A nil
// query vector or a store failure yields no matches and flags degradation
// only in the failure case.
func (o *Orchestrator) similarity(
	ctx context.Context,
	log *slog.Logger,
	queryVec []float32,
	locale model.Locale,
	candidates map[string]struct{},
) ([]model.SimilarityMatch, bool) {
	if queryVec == nil || o.vectors == nil || len(candidates) == 0 {
		return nil, false
	}

	stage := time.Now()
	if o.cfg.VectorBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.VectorBudget)
		defer cancel()
	}

	var (
		matches []model.SimilarityMatch
		err     error
	)
	if len(candidates) <= o.cfg.CandidateCutoff {
		matches, err = o.vectors.Search(ctx, queryVec, locale, candidates, o.cfg.TopK, o.cfg.MinSimilarity)
	} else {
		matches, err = o.vectors.Search(ctx, queryVec, locale, nil, o.cfg.TopK, o.cfg.MinSimilarity)
		if err == nil {
			kept := matches[:0]
			for _, m := range matches {
				if _, ok := candidates[m.PropertyID]; ok {
					kept = append(kept, m)
				}
			}
			matches = kept
		}
	}
	o.metrics.ObserveStage("vector", time.Since(stage))

	if err != nil {
		log.Warn("similarity search unavailable, ranking filter-only", "error", err)
		o.metrics.IncDegraded("vector")
		return nil, true
	}
	return matches, false
}

// RecordFeedback forwards a result interaction to the feedback sink.
func (o *Orchestrator) RecordFeedback(ctx context.Context, searchID, propertyID, action string) error {
	if o.sink == nil {
		return nil
	}
	return o.sink.LogFeedback(ctx, searchID, propertyID, action)
}

// logSearch is best-effort: feedback logging never affects a response.
func (o *Orchestrator) logSearch(searchID, query string, locale model.Locale, resultCount int, tookMs int64) {
	if o.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.sink.LogSearch(ctx, searchID, query, locale, resultCount, tookMs); err != nil {
		o.logger.Warn("search log write failed", "error", err)
	}
}

func paginate(results []model.RankedResult, page, perPage int) []model.RankedResult {
	start := (page - 1) * perPage
	if start >= len(results) {
		return []model.RankedResult{}
	}
	end := start + perPage
	if end > len(results) {
		end = len(results)
	}
	return results[start:end]
}
