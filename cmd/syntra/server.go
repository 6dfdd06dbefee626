package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/syntra/internal/importer"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/server"
	"github.com/hyperjump/syntra/internal/tracing"
	"github.com/hyperjump/syntra/internal/watcher"
	"github.com/hyperjump/syntra/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func NewServerCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and directory importer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return runServer(cmd.Context(), configPath, debug, version)
		},
	}
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	return cmd
}

func runServer(ctx context.Context, configPath string, debug bool, version string) error {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	defaultType, err := models.ParseNodeType(cfg.Watch.DefaultType)
	if err != nil {
		return fmt.Errorf("invalid watch.default_type: %w", err)
	}
	imp := importer.New(components.Service, defaultType,
		importer.WithLogger(logger),
		importer.WithMetrics(components.Metrics),
	)
	watch := watcher.New(cfg.Watch.Directories, imp, watcher.Options{
		Extensions: cfg.Watch.Extensions,
		Recursive:  cfg.Watch.RecursiveOrDefault(),
	}, watcher.WithLogger(logger))
	if err := watch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watch.Stop()
	go func() {
		if n, err := imp.Prune(ctx, cfg.Watch.Directories); err != nil {
			logger.Warn("Failed to prune imported files", zap.Error(err))
		} else if n > 0 {
			logger.Info("Pruned imported files", zap.Int("nodes", n))
		}
		watch.SyncExistingFiles()
	}()

	srv := server.NewServer(components.Service, &cfg.Server, logger,
		server.WithMetrics(components.Metrics),
		server.WithWatch(watch, resolvedConfigPath, cfg),
		server.WithVersion(version),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(sctx)
}
