package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchcore/internal/cache"
	"searchcore/internal/embedding"
	"searchcore/internal/filter"
	"searchcore/internal/interpreter"
	"searchcore/internal/llm"
	"searchcore/internal/llm/mock"
	"searchcore/internal/model"
	"searchcore/internal/rank"
	"searchcore/internal/repository"
	"searchcore/internal/vector"
)

func intPtr(v int) *int { return &v }
func strPtr(s string) *string {
	return &s
}

type fixture struct {
	repo      *repository.MemoryRepository
	store     *vector.MemoryStore
	embedder  *mock.Embedder
	extractor *mock.Extractor
	orch      *Orchestrator
}

type fixtureOptions struct {
	embedFunc   func(ctx context.Context, texts []string, locale model.Locale) ([][]float32, error)
	extractFunc func(ctx context.Context, text string, locale model.Locale) (*llm.IntentExtraction, error)
	withCache   bool
	filters     filter.Engine
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepository(nil)
	store := vector.NewMemoryStore(8)
	embedder := &mock.Embedder{Dimensions: 8, EmbedFunc: opts.embedFunc}
	extractor := &mock.Extractor{ExtractFunc: opts.extractFunc}

	svc, err := embedding.NewService(embedder, embedding.Options{
		Dimensions:     8,
		BatchSize:      4,
		PoolSize:       2,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	var resultCache *cache.ResultCache
	if opts.withCache {
		backend, err := cache.NewInMemoryBackend()
		require.NoError(t, err)
		t.Cleanup(func() { backend.Close() })
		resultCache = cache.New(backend, time.Minute, 0, nil)
	}

	filterEng := opts.filters
	if filterEng == nil {
		filterEng = filter.NewMemoryEngine(repo)
	}

	orch := New(Options{
		Interpreter: interpreter.New(extractor, interpreter.Config{
			Budget:          time.Second,
			MinConfidence:   0.5,
			BreakerFailures: 100,
			BreakerCooldown: time.Minute,
		}, nil),
		Embeds:  svc,
		Filters: filterEng,
		Vectors: store,
		Repo:    repo,
		Sink:    repo,
		Fuser:   rank.NewFuser(rank.DefaultWeights),
		Cache:   resultCache,
		Config: Config{
			RequestBudget:   2 * time.Second,
			TopK:            10,
			MinSimilarity:   0.6,
			CandidateCutoff: 5000,
		},
	})

	return &fixture{repo: repo, store: store, embedder: embedder, extractor: extractor, orch: orch}
}

func seedVilla(f *fixture, t *testing.T, id, title string, bedrooms int, amenities []string, priority int) {
	t.Helper()
	f.repo.Seed(&model.PropertyRecord{
		ID:              id,
		Title:           model.LocalizedText{model.LocaleEN: title},
		PriceMinor:      800_000_00,
		Bedrooms:        bedrooms,
		PropertyType:    model.PropertyTypeVilla,
		TransactionType: model.TransactionSale,
		Amenities:       model.StringList(amenities),
		ListingPriority: priority,
		Published:       true,
		CreatedAt:       time.Now(),
	})
	require.NoError(t, f.store.Upsert(context.Background(), id, model.LocaleEN,
		mock.DeterministicVector(title, 8), embedding.ContentHash(title)))
}

func villaExtraction(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
	return &llm.IntentExtraction{
		PropertyTypes: []string{"villa"},
		BedroomsMin:   intPtr(3),
		Amenities:     []string{"pool"},
		Confidence:    0.9,
	}, nil
}

func TestSearchNaturalLanguageVillaQuery(t *testing.T) {
	f := newFixture(t, fixtureOptions{extractFunc: villaExtraction})

	// The exact match carries the query text as its title, so its vector is
	// identical to the query vector.
	seedVilla(f, t, "exact", "3 bedroom villa with pool", 3, []string{"pool", "gym"}, 0)
	seedVilla(f, t, "also-matching", "Spacious villa, private pool", 4, []string{"pool"}, 0)
	seedVilla(f, t, "no-pool", "3 bedroom villa, garden view", 3, []string{"garden"}, 0)
	seedVilla(f, t, "too-small", "Cozy villa with pool", 1, []string{"pool"}, 0)

	resp, err := f.orch.Search(context.Background(), model.SearchRequest{
		Query:  strPtr("3 Bedroom Villa with POOL"),
		Locale: model.LocaleEN,
	})
	require.NoError(t, err)

	assert.False(t, resp.DegradedMode)
	assert.False(t, resp.CacheHit)
	assert.NotEmpty(t, resp.SearchID)
	require.NotNil(t, resp.InterpretedFilters)
	assert.Equal(t, []string{"pool"}, resp.InterpretedFilters.Amenities)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "exact", resp.Results[0].PropertyID)
	assert.Equal(t, 0, resp.Results[0].Rank)
	assert.InDelta(t, 1.0, resp.Results[0].Breakdown.Similarity, 1e-6)

	// Extracted filters gate the candidate set.
	for _, r := range resp.Results {
		assert.NotEqual(t, "no-pool", r.PropertyID)
		assert.NotEqual(t, "too-small", r.PropertyID)
	}
}

func TestSearchDegradesWhenEmbeddingFails(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		extractFunc: villaExtraction,
		embedFunc: func(context.Context, []string, model.Locale) ([][]float32, error) {
			return nil, errors.New("embedding provider down")
		},
	})
	seedVilla(f, t, "v1", "Villa with pool", 3, []string{"pool"}, 5)
	seedVilla(f, t, "v2", "Another villa with pool", 3, []string{"pool"}, 9)

	resp, err := f.orch.Search(context.Background(), model.SearchRequest{
		Query:  strPtr("3 bedroom villa with pool"),
		Locale: model.LocaleEN,
	})
	require.NoError(t, err)

	assert.True(t, resp.DegradedMode)
	require.Len(t, resp.Results, 2)
	// Filter-only ranking falls back to listing priority.
	assert.Equal(t, "v2", resp.Results[0].PropertyID)
	assert.Equal(t, "v1", resp.Results[1].PropertyID)
}

func TestSearchFilterOnlyRequest(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	seedVilla(f, t, "cheap", "Affordable villa", 3, []string{"pool"}, 2)
	seedVilla(f, t, "featured", "Featured villa", 3, []string{"pool"}, 8)

	resp, err := f.orch.Search(context.Background(), model.SearchRequest{
		Locale:  model.LocaleEN,
		Filters: &model.FilterSet{PropertyTypes: []model.PropertyType{model.PropertyTypeVilla}},
	})
	require.NoError(t, err)

	assert.False(t, resp.DegradedMode)
	assert.Nil(t, resp.InterpretedFilters)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "featured", resp.Results[0].PropertyID)
	assert.Equal(t, 0, f.extractor.Calls(), "no query text, no extraction call")
	assert.Equal(t, 0, f.embedder.Calls(), "no query text, no embedding call")
}

func TestSearchCacheHitOnIdenticalRequest(t *testing.T) {
	f := newFixture(t, fixtureOptions{extractFunc: villaExtraction, withCache: true})
	seedVilla(f, t, "exact", "3 bedroom villa with pool", 3, []string{"pool"}, 0)

	req := model.SearchRequest{Query: strPtr("3 bedroom villa with pool"), Locale: model.LocaleEN}

	first, err := f.orch.Search(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := f.orch.Search(context.Background(), model.SearchRequest{
		Query:  strPtr("3 bedroom villa with pool"),
		Locale: model.LocaleEN,
	})
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.TotalEstimate, second.TotalEstimate)
	assert.NotEqual(t, first.SearchID, second.SearchID)
	// The pipeline was skipped entirely.
	assert.Equal(t, 1, f.extractor.Calls())
}

func TestSearchCacheMissOnChangedFilters(t *testing.T) {
	f := newFixture(t, fixtureOptions{extractFunc: villaExtraction, withCache: true})
	seedVilla(f, t, "exact", "3 bedroom villa with pool", 3, []string{"pool"}, 0)

	base := model.SearchRequest{Query: strPtr("3 bedroom villa with pool"), Locale: model.LocaleEN}
	_, err := f.orch.Search(context.Background(), base)
	require.NoError(t, err)

	priced := base
	priced.Filters = &model.FilterSet{PriceMaxMinor: func() *int64 { v := int64(900_000_00); return &v }()}
	resp, err := f.orch.Search(context.Background(), priced)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestSearchDegradedResponsesAreNotCached(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		extractFunc: villaExtraction,
		withCache:   true,
		embedFunc: func(context.Context, []string, model.Locale) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	})
	seedVilla(f, t, "v1", "Villa with pool", 3, []string{"pool"}, 1)

	req := model.SearchRequest{Query: strPtr("villa with pool"), Locale: model.LocaleEN}

	first, err := f.orch.Search(context.Background(), req)
	require.NoError(t, err)
	require.True(t, first.DegradedMode)

	second, err := f.orch.Search(context.Background(), model.SearchRequest{
		Query:  strPtr("villa with pool"),
		Locale: model.LocaleEN,
	})
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
}

func TestSearchRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	_, err := f.orch.Search(context.Background(), model.SearchRequest{Locale: "xx"})
	assert.ErrorIs(t, err, model.ErrUnknownLocale)

	_, err = f.orch.Search(context.Background(), model.SearchRequest{
		Locale: model.LocaleEN, PerPage: model.MaxPerPage + 1,
	})
	assert.ErrorIs(t, err, model.ErrInvalidPagination)
}

type failingFilterEngine struct{}

func (failingFilterEngine) Match(context.Context, *model.FilterSet) (map[string]struct{}, error) {
	return nil, errors.New("database unreachable")
}

func TestSearchFilterEngineFailureReturnsEmptyDegraded(t *testing.T) {
	f := newFixture(t, fixtureOptions{filters: failingFilterEngine{}})

	resp, err := f.orch.Search(context.Background(), model.SearchRequest{Locale: model.LocaleEN})
	require.NoError(t, err)

	assert.True(t, resp.DegradedMode)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalEstimate)
}

func TestSearchPagination(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		seedVilla(f, t, id, "Villa "+id, 3, nil, 10-i)
	}

	page1, err := f.orch.Search(context.Background(), model.SearchRequest{
		Locale: model.LocaleEN, Page: 1, PerPage: 2,
	})
	require.NoError(t, err)
	page2, err := f.orch.Search(context.Background(), model.SearchRequest{
		Locale: model.LocaleEN, Page: 2, PerPage: 2,
	})
	require.NoError(t, err)
	beyond, err := f.orch.Search(context.Background(), model.SearchRequest{
		Locale: model.LocaleEN, Page: 9, PerPage: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, page1.TotalEstimate)
	require.Len(t, page1.Results, 2)
	require.Len(t, page2.Results, 2)
	assert.Empty(t, beyond.Results)

	assert.Equal(t, []string{"a", "b"}, []string{page1.Results[0].PropertyID, page1.Results[1].PropertyID})
	assert.Equal(t, []string{"c", "d"}, []string{page2.Results[0].PropertyID, page2.Results[1].PropertyID})
}

func TestSearchLogsActivity(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	seedVilla(f, t, "v1", "Villa", 3, nil, 1)

	resp, err := f.orch.Search(context.Background(), model.SearchRequest{Locale: model.LocaleEN})
	require.NoError(t, err)

	logs := f.repo.SearchLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, resp.SearchID, logs[0].SearchID)
	assert.Equal(t, 1, logs[0].ResultCount)
}
