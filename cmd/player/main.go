package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/trailplay/geohunt/internal/authority"
	"github.com/trailplay/geohunt/internal/config"
	"github.com/trailplay/geohunt/internal/database"
	"github.com/trailplay/geohunt/internal/engine"
	"github.com/trailplay/geohunt/internal/geo"
	"github.com/trailplay/geohunt/internal/migrations"
	"github.com/trailplay/geohunt/internal/snapshot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr so they never interleave with the console.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Local snapshot store (SQLite) ---
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("snapshot store ready", "path", cfg.DBPath)

	// --- Remote authority ---
	client, err := authority.NewHTTPClient(cfg.AuthorityURL, cfg.AuthorityTimeout, logger)
	if err != nil {
		return fmt.Errorf("building authority client: %w", err)
	}

	// --- Engine and providers ---
	positions := newManualProvider()
	scanner := newManualScanner()
	sampler := geo.NewSampler(cfg.MinAccuracyMeters)
	notifier := engine.NewNotifier()
	eng := engine.New(client, snapshot.New(db), sampler, positions, scanner, notifier, logger)

	console := newConsole(eng, positions, scanner, notifier, stdout)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return console.run(gctx)
	})

	g.Go(func() error {
		console.watchNotices(gctx)
		return nil
	})

	return g.Wait()
}
