package interpreter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchcore/internal/llm"
	"searchcore/internal/llm/mock"
	"searchcore/internal/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func testConfig() Config {
	return Config{
		Budget:          time.Second,
		MinConfidence:   0.5,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}
}

func TestInterpretExtractsAndValidates(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return &llm.IntentExtraction{
				PropertyTypes: []string{"villa"},
				BedroomsMin:   intPtr(3),
				Amenities:     []string{"Swimming Pool"},
				Confidence:    0.9,
			}, nil
		},
	}
	p := New(extractor, testConfig(), nil)

	intent := p.Interpret(context.Background(), "3 Bedroom Villa with pool", model.LocaleEN)

	assert.Equal(t, "3 bedroom villa with pool", intent.NormalizedQuery)
	assert.Equal(t, 0.9, intent.Confidence)
	assert.Equal(t, []model.PropertyType{model.PropertyTypeVilla}, intent.Filters.PropertyTypes)
	require.NotNil(t, intent.Filters.BedroomsMin)
	assert.Equal(t, 3, *intent.Filters.BedroomsMin)
	assert.Equal(t, []string{"pool"}, intent.Filters.Amenities)
}

func TestInterpretDropsOutOfVocabularyValues(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return &llm.IntentExtraction{
				PropertyTypes:    []string{"castle", "condo"},
				TransactionTypes: []string{"lease-to-own"},
				BedroomsMin:      intPtr(99),
				Amenities:        []string{"helipad", "gym"},
				Confidence:       0.8,
			}, nil
		},
	}
	p := New(extractor, testConfig(), nil)

	intent := p.Interpret(context.Background(), "query", model.LocaleEN)

	assert.Equal(t, []model.PropertyType{model.PropertyTypeCondo}, intent.Filters.PropertyTypes)
	assert.Empty(t, intent.Filters.TransactionTypes)
	assert.Nil(t, intent.Filters.BedroomsMin)
	assert.Equal(t, []string{"gym"}, intent.Filters.Amenities)
}

func TestInterpretDropsInvertedPriceRange(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return &llm.IntentExtraction{
				PriceMinMinor: int64Ptr(900_000_00),
				PriceMaxMinor: int64Ptr(100_000_00),
				Confidence:    0.8,
			}, nil
		},
	}
	p := New(extractor, testConfig(), nil)

	intent := p.Interpret(context.Background(), "query", model.LocaleEN)
	assert.Nil(t, intent.Filters.PriceMinMinor)
	assert.Nil(t, intent.Filters.PriceMaxMinor)
}

func TestInterpretLowConfidenceBecomesEmptyIntent(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return &llm.IntentExtraction{
				PropertyTypes: []string{"villa"},
				Confidence:    0.2,
			}, nil
		},
	}
	p := New(extractor, testConfig(), nil)

	intent := p.Interpret(context.Background(), "Something Vague", model.LocaleEN)
	assert.False(t, intent.HasFilters())
	assert.Zero(t, intent.Confidence)
	assert.Equal(t, "something vague", intent.NormalizedQuery)
}

func TestInterpretProviderErrorBecomesEmptyIntent(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return nil, errors.New("provider exploded")
		},
	}
	p := New(extractor, testConfig(), nil)

	intent := p.Interpret(context.Background(), "query", model.LocaleEN)
	assert.False(t, intent.HasFilters())
	assert.Zero(t, intent.Confidence)
	assert.Equal(t, "query", intent.NormalizedQuery)
	// One retry after the initial failure.
	assert.Equal(t, 2, extractor.Calls())
}

func TestInterpretEmptyQueryAndNilExtractor(t *testing.T) {
	p := New(nil, testConfig(), nil)
	intent := p.Interpret(context.Background(), "   ", model.LocaleEN)
	assert.False(t, intent.HasFilters())
	assert.Empty(t, intent.NormalizedQuery)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	extractor := &mock.Extractor{
		ExtractFunc: func(context.Context, string, model.Locale) (*llm.IntentExtraction, error) {
			return nil, errors.New("down")
		},
	}
	p := New(extractor, testConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p.Interpret(ctx, "query", model.LocaleEN)
	}
	callsWhenOpen := extractor.Calls()

	// With the breaker open, further searches skip the provider entirely.
	for i := 0; i < 5; i++ {
		intent := p.Interpret(ctx, "query", model.LocaleEN)
		assert.False(t, intent.HasFilters())
	}
	assert.Equal(t, callsWhenOpen, extractor.Calls())
}
