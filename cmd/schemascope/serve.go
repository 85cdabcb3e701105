package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemascope"
	"github.com/tordrt/schemascope/internal/cache"
	"github.com/tordrt/schemascope/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve schema introspection, health analysis and a row proxy over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("addr", ":8787", "listen address")
	cmd.Flags().String("redis-url", "", "Redis URL for the schema snapshot cache (disabled when empty)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := requireDatabaseURL(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := schemascope.OpenSource(ctx, cfg.Database.URL, sourceOptions(nil, nil))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	svcConfig := server.ServiceConfig{
		Extractor:  src.Extractor,
		Rows:       src.Rows,
		Source:     src.Kind,
		Location:   src.Location,
		SchemaName: src.SchemaName,
		Analysis:   cfg.Analysis.Options(),
		Logger:     logger,
	}

	if cfg.Cache.RedisURL != "" {
		snapshots, err := cache.NewSnapshotCache(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = snapshots.Close() }()
		svcConfig.Cache = snapshots
		logger.Info("snapshot cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	}

	httpServer := server.NewHTTPServer(server.NewService(svcConfig), logger, cfg.Server.CORSOrigin)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("schemascope listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("source", src.Kind),
			zap.String("schema", src.SchemaName),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
