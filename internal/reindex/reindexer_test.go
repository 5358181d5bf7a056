package reindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchcore/internal/embedding"
	"searchcore/internal/llm/mock"
	"searchcore/internal/model"
	"searchcore/internal/repository"
	"searchcore/internal/vector"
)

func newFixture(t *testing.T) (*repository.MemoryRepository, *mock.Embedder, *vector.MemoryStore, *Reindexer) {
	t.Helper()
	repo := repository.NewMemoryRepository(nil)
	embedder := &mock.Embedder{Dimensions: 8}
	store := vector.NewMemoryStore(8)

	svc, err := embedding.NewService(embedder, embedding.Options{
		Dimensions:     8,
		BatchSize:      4,
		PoolSize:       2,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return repo, embedder, store, New(repo, svc, store, nil)
}

func seedListing(repo *repository.MemoryRepository, id, title string) {
	repo.Seed(&model.PropertyRecord{
		ID:        id,
		Title:     model.LocalizedText{model.LocaleEN: title},
		Published: true,
		CreatedAt: time.Now(),
	})
}

func TestRunEmbedsNewListings(t *testing.T) {
	repo, _, store, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "p1", "Villa with pool in Bangsar")
	seedListing(repo, "p2", "Condo near KLCC")

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Refreshed)

	hash, err := store.ContentHash(ctx, "p1", model.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, embedding.ContentHash("Villa with pool in Bangsar"), hash)
}

func TestRunSkipsUnchangedContent(t *testing.T) {
	repo, _, _, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "p1", "Villa with pool")

	_, err := r.Run(ctx)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Refreshed)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunReembedsOnlyStaleContent(t *testing.T) {
	repo, _, store, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "stale", "Original title")
	seedListing(repo, "fresh", "Untouched title")

	_, err := r.Run(ctx)
	require.NoError(t, err)

	repo.Seed(&model.PropertyRecord{
		ID:        "stale",
		Title:     model.LocalizedText{model.LocaleEN: "Renovated title"},
		Published: true,
		CreatedAt: time.Now(),
	})

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refreshed)
	assert.Equal(t, 1, report.Skipped)

	hash, err := store.ContentHash(ctx, "stale", model.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, embedding.ContentHash("Renovated title"), hash)
}

func TestRunDropsUnsearchableListings(t *testing.T) {
	repo, _, store, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "p1", "Soon to be delisted")
	_, err := r.Run(ctx)
	require.NoError(t, err)

	repo.Seed(&model.PropertyRecord{
		ID:          "p1",
		Title:       model.LocalizedText{model.LocaleEN: "Soon to be delisted"},
		Published:   true,
		SoftDeleted: true,
	})

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	hash, err := store.ContentHash(ctx, "p1", model.LocaleEN)
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestHandleEventRefreshesSingleProperty(t *testing.T) {
	repo, _, store, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "p1", "First version")
	require.NoError(t, r.HandleEvent(ctx, model.ChangeEvent{PropertyID: "p1", LastModifiedAt: time.Now()}))

	hash, err := store.ContentHash(ctx, "p1", model.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, embedding.ContentHash("First version"), hash)
}

func TestHandleEventDeletion(t *testing.T) {
	repo, _, store, r := newFixture(t)
	ctx := context.Background()

	seedListing(repo, "p1", "Going away")
	require.NoError(t, r.HandleEvent(ctx, model.ChangeEvent{PropertyID: "p1", LastModifiedAt: time.Now()}))
	require.NoError(t, r.HandleEvent(ctx, model.ChangeEvent{PropertyID: "p1", Deleted: true}))

	hash, err := store.ContentHash(ctx, "p1", model.LocaleEN)
	require.NoError(t, err)
	assert.Empty(t, hash)
}
