package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/molgrid/internal/persistence/sqlite"
	"github.com/daniacca/molgrid/internal/reaction"
)

func main() {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(os.Stdout)
			return
		}
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		usage(os.Stderr)
		os.Exit(2)
	}

	logger := NewLogger(cfg.LogLevel)
	srv := NewServer(logger, cfg.NotifyWorkers)
	srv.SetSnapshotDir(cfg.SnapshotDir)

	if cfg.DBPath != "" {
		store, err := sqlite.NewStore(cfg.DBPath)
		if err != nil {
			logger.Fatalf("failed to open snapshot history %s: %v", cfg.DBPath, err)
		}
		srv.SetHistoryStore(store)
		logger.Infof("snapshot history at %s", store.Path())
	}

	if cfg.ChartFile != "" {
		if err := applyInitialChart(srv, cfg.ChartFile, reaction.ChartID(cfg.ChartID)); err != nil {
			logger.Fatalf("failed to load chart file %s: %v", cfg.ChartFile, err)
		}
		logger.Infof("chart %s loaded from %s", cfg.ChartID, cfg.ChartFile)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("molgrid-server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if err := srv.Close(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
