package embedding

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

func newService(t *testing.T, embedder llm.Embedder, dims int) *Service {
	t.Helper()
	svc, err := NewService(embedder, Options{
		Dimensions:     dims,
		BatchSize:      2,
		PoolSize:       2,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNewServiceRequiresDimensions(t *testing.T) {
	_, err := NewService(&mock.Embedder{}, Options{})
	assert.Error(t, err)
}

func TestEmbedMemoizesByContentHash(t *testing.T) {
	embedder := &mock.Embedder{Dimensions: 8}
	svc := newService(t, embedder, 8)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "villa with pool", model.LocaleEN)
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "villa with pool", model.LocaleEN)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.Calls())
}

func TestEmbedMemoIsPerLocale(t *testing.T) {
	embedder := &mock.Embedder{Dimensions: 8}
	svc := newService(t, embedder, 8)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "same text", model.LocaleEN)
	require.NoError(t, err)
	_, err = svc.Embed(ctx, "same text", model.LocaleZH)
	require.NoError(t, err)

	assert.Equal(t, 2, embedder.Calls())
}

func TestEmbedRejectsWrongDimensions(t *testing.T) {
	embedder := &mock.Embedder{Dimensions: 4}
	svc := newService(t, embedder, 8)

	_, err := svc.Embed(context.Background(), "text", model.LocaleEN)
	assert.Error(t, err)
}

func TestEmbedBatchAlignsWithInput(t *testing.T) {
	embedder := &mock.Embedder{Dimensions: 8}
	svc := newService(t, embedder, 8)
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four", "five"}
	vecs, err := svc.EmbedBatch(ctx, texts, model.LocaleEN)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	for i, text := range texts {
		assert.Equal(t, mock.DeterministicVector(text, 8), vecs[i], "index %d", i)
	}
}

func TestEmbedBatchSkipsMemoizedTexts(t *testing.T) {
	embedder := &mock.Embedder{Dimensions: 8}
	svc := newService(t, embedder, 8)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "warm", model.LocaleEN)
	require.NoError(t, err)
	callsAfterWarm := embedder.Calls()

	vecs, err := svc.EmbedBatch(ctx, []string{"warm"}, model.LocaleEN)
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, callsAfterWarm, embedder.Calls())
}

func TestEmbedBatchPropagatesProviderFailure(t *testing.T) {
	embedder := &mock.Embedder{
		EmbedFunc: func(context.Context, []string, model.Locale) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	svc := newService(t, embedder, 8)

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"}, model.LocaleEN)
	assert.Error(t, err)
}

func TestRetryWithBackoffStopsOnSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return errors.New("always failing")
	}, 5, 10*time.Millisecond)
	assert.Error(t, err)
}

func TestContentHashIsStable(t *testing.T) {
	assert.Equal(t, ContentHash("same"), ContentHash("same"))
	assert.NotEqual(t, ContentHash("same"), ContentHash("different"))
	assert.Len(t, ContentHash("x"), 64)
}
