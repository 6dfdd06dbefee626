package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/syntra/internal/config"
	"github.com/hyperjump/syntra/internal/embedding"
	"github.com/hyperjump/syntra/internal/keyword"
	"github.com/hyperjump/syntra/internal/knowledge"
	"github.com/hyperjump/syntra/internal/metrics"
	"github.com/hyperjump/syntra/internal/storage"
)

// metricsNamespace prefixes every exported Prometheus metric.
const metricsNamespace = "syntra"

// loadConfig loads config from path. When path is the default and ./config.yaml exists, that
// file is used instead so "syntra server" run from a project directory picks up its config.
// Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds the long-lived pieces behind the HTTP server.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Keyword  *keyword.BleveIndex
	Metrics  *metrics.Collector
	Service  *knowledge.Service
}

// Close releases resources in reverse order of creation.
func (c *Components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Metrics: metrics.NewCollector(metricsNamespace)}

	if cfg.Storage.DatabasePath != "" && cfg.Storage.DatabasePath != ":memory:" && cfg.Storage.Driver != string(storage.DriverMemory) {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	c.Storage = store

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	c.Embedder = emb

	idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	c.Keyword = idx

	var diskPaths []string
	dbPath := ""
	if cfg.Storage.Driver != string(storage.DriverMemory) {
		dbPath = cfg.Storage.DatabasePath
		diskPaths = storage.DatabaseFiles(dbPath)
	}
	if cfg.Storage.BleveIndexPath != "" {
		diskPaths = append(diskPaths, cfg.Storage.BleveIndexPath)
	}

	c.Service = knowledge.NewService(store, emb,
		knowledge.WithLogger(logger),
		knowledge.WithKeywordIndex(idx),
		knowledge.WithMetrics(c.Metrics),
		knowledge.WithSearchLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
		knowledge.WithStorageInfo(cfg.Storage.Driver, dbPath, diskPaths...),
	)

	if err := c.Service.CheckDimensions(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.Service.RebuildKeywordIndex(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	return c, nil
}
