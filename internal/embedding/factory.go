package embedding

import (
	"fmt"

	"github.com/hyperjump/syntra/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder described by cfg: the provider, then the circuit breaker when
// enabled, then the LRU cache when cache_size is positive.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var emb Embedder
	switch cfg.Provider {
	case "mock":
		emb = NewMockEmbedder(cfg.Dimensions)
	case "openai", "":
		key := cfg.ResolveAPIKey()
		if key == "" {
			logger.Warn("No embedding API key configured", zap.String("env", cfg.APIKeyEnv))
		}
		oe, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     key,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetriesOrDefault(),
		})
		if err != nil {
			return nil, err
		}
		emb = oe
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if cfg.Breaker.EnabledOrDefault() && cfg.Provider != "mock" {
		emb = NewBreakerEmbedder(emb, BreakerSettings{
			Name:             "embedding-" + cfg.Provider,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		}, logger)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedEmbedder(emb, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		emb = cached
	}

	logger.Info("Embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Int("cache_size", cfg.CacheSize))
	return emb, nil
}
