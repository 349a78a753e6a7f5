package embed

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

func TestNewEmbedder_DefaultsToStatic(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.IsType(t, &StaticEmbedder{}, e)
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNewEmbedder_StaticWithCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{Provider: "static", Dimensions: 32, CacheSize: 10, Workers: 8})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner(), "static embedder is never pooled")
	assert.Equal(t, 32, e.Dimensions())
}

func TestNewEmbedder_OllamaIsPooledAndCached(t *testing.T) {
	srv, _ := fakeOllama(t, 0)

	e, err := NewEmbedder(context.Background(), Config{
		Provider: "ollama", OllamaHost: srv.URL, Workers: 2, BatchSize: 4, CacheSize: 5,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &PooledEmbedder{}, cached.Inner())
	assert.Equal(t, 3, e.Dimensions())
}

func TestNewEmbedder_OpenAI(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK)

	e, err := NewEmbedder(context.Background(), Config{Provider: "OpenAI", OpenAIBaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 4, e.Dimensions())
	assert.Equal(t, "m", e.ModelName())
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "mlx"})

	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeUnknownBackend, ragerrors.GetCode(err))
	assert.True(t, ragerrors.IsFatal(err))
}
