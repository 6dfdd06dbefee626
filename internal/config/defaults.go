package config

import "time"

// DefaultPath is where the CLI looks for a config file when ./config.yaml is absent.
const DefaultPath = "/usr/local/etc/syntra/config.yaml"

// DefaultAPIKeyEnv names the environment variable holding the embedding API key.
const DefaultAPIKeyEnv = "SYNTRA_EMBEDDING_API_KEY"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/syntra/data/db/syntra.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	b := &cfg.Embedding.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 5
	}
	if b.Interval == 0 {
		b.Interval = 30 * time.Second
	}
	if b.Timeout == 0 {
		b.Timeout = 60 * time.Second
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 0.6
	}
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".md", ".markdown", ".txt"}
	}
	if cfg.Watch.DefaultType == "" {
		cfg.Watch.DefaultType = "note"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "syntra"
	}
}
