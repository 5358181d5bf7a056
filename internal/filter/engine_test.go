package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchcore/internal/model"
	"searchcore/internal/repository"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func fixture(id string, mutate func(*model.PropertyRecord)) *model.PropertyRecord {
	rec := &model.PropertyRecord{
		ID:              id,
		Title:           model.LocalizedText{model.LocaleEN: "Test listing " + id},
		PriceMinor:      350_000_00,
		Bedrooms:        3,
		Bathrooms:       2,
		PropertyType:    model.PropertyTypeVilla,
		TransactionType: model.TransactionSale,
		Amenities:       model.StringList{"pool", "gym", "parking"},
		Locations:       model.StringList{"Bangsar", "kuala lumpur"},
		Published:       true,
		CreatedAt:       time.Now(),
	}
	if mutate != nil {
		mutate(rec)
	}
	return rec
}

func TestMatchesGatesUnsearchable(t *testing.T) {
	unpublished := fixture("p1", func(r *model.PropertyRecord) { r.Published = false })
	deleted := fixture("p2", func(r *model.PropertyRecord) { r.SoftDeleted = true })

	assert.False(t, Matches(unpublished, nil))
	assert.False(t, Matches(deleted, nil))
	assert.True(t, Matches(fixture("p3", nil), nil))
}

func TestMatchesTypeMembership(t *testing.T) {
	rec := fixture("p1", nil)

	assert.True(t, Matches(rec, &model.FilterSet{
		PropertyTypes: []model.PropertyType{model.PropertyTypeCondo, model.PropertyTypeVilla},
	}))
	assert.False(t, Matches(rec, &model.FilterSet{
		PropertyTypes: []model.PropertyType{model.PropertyTypeCondo},
	}))
	assert.False(t, Matches(rec, &model.FilterSet{
		TransactionTypes: []model.TransactionType{model.TransactionRent},
	}))
}

func TestMatchesAmenitySuperset(t *testing.T) {
	rec := fixture("p1", nil)

	// Every requested amenity must be present.
	assert.True(t, Matches(rec, &model.FilterSet{Amenities: []string{"pool", "gym"}}))
	assert.False(t, Matches(rec, &model.FilterSet{Amenities: []string{"pool", "tennis"}}))
}

func TestMatchesLocationAny(t *testing.T) {
	rec := fixture("p1", nil)

	// One matching token suffices, case-insensitively.
	assert.True(t, Matches(rec, &model.FilterSet{Locations: []string{"Petaling Jaya", "BANGSAR"}}))
	assert.False(t, Matches(rec, &model.FilterSet{Locations: []string{"penang"}}))
}

func TestMatchesNumericRanges(t *testing.T) {
	rec := fixture("p1", nil)

	assert.True(t, Matches(rec, &model.FilterSet{BedroomsMin: intPtr(3)}))
	assert.False(t, Matches(rec, &model.FilterSet{BedroomsMin: intPtr(4)}))

	assert.True(t, Matches(rec, &model.FilterSet{
		PriceMinMinor: int64Ptr(300_000_00),
		PriceMaxMinor: int64Ptr(400_000_00),
	}))
	assert.False(t, Matches(rec, &model.FilterSet{PriceMaxMinor: int64Ptr(100_000_00)}))
	assert.False(t, Matches(rec, &model.FilterSet{PriceMinMinor: int64Ptr(500_000_00)}))
}

func TestMemoryEngineMatch(t *testing.T) {
	repo := repository.NewMemoryRepository(nil)
	repo.Seed(fixture("a", nil))
	repo.Seed(fixture("b", func(r *model.PropertyRecord) { r.Bedrooms = 1 }))
	repo.Seed(fixture("c", func(r *model.PropertyRecord) { r.Published = false }))

	eng := NewMemoryEngine(repo)
	ids, err := eng.Match(context.Background(), &model.FilterSet{BedroomsMin: intPtr(2)})
	require.NoError(t, err)

	assert.Contains(t, ids, "a")
	assert.NotContains(t, ids, "b")
	assert.NotContains(t, ids, "c")
}

func TestMemoryEngineNilFilterReturnsAllSearchable(t *testing.T) {
	repo := repository.NewMemoryRepository(nil)
	repo.Seed(fixture("a", nil))
	repo.Seed(fixture("b", func(r *model.PropertyRecord) { r.SoftDeleted = true }))

	eng := NewMemoryEngine(repo)
	ids, err := eng.Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Contains(t, ids, "a")
}

func TestMemoryEngineHonorsContext(t *testing.T) {
	repo := repository.NewMemoryRepository(nil)
	repo.Seed(fixture("a", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewMemoryEngine(repo)
	_, err := eng.Match(ctx, nil)
	assert.Error(t, err)
}
