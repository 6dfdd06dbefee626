package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		Model:      "text-embedding-3-small",
		Dimensions: 3,
	})
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, v)
	assert.Equal(t, "hello world", got["input"])
	assert.Equal(t, "text-embedding-3-small", got["model"])
	assert.EqualValues(t, 3, got["dimensions"])
	assert.Equal(t, 3, e.Dimensions())
}

func TestOpenAIEmbedder_OmitsDimensionsForOlderModels(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/", Model: "text-embedding-ada-002", Dimensions: 1})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x")
	require.NoError(t, err)
	_, ok := got["dimensions"]
	assert.False(t, ok)
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/", Model: "m", Dimensions: 3, MaxRetries: 0})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "text")
	assert.Error(t, err)

	_, err = e.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewOpenAIEmbedder(OpenAIConfig{Dimensions: 3})
	assert.Error(t, err)
	_, err = NewOpenAIEmbedder(OpenAIConfig{Model: "m"})
	assert.Error(t, err)
}
