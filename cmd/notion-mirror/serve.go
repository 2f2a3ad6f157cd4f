package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/natikgadzhi/notion-mirror/internal/config"
	"github.com/natikgadzhi/notion-mirror/internal/notion"
	"github.com/natikgadzhi/notion-mirror/internal/queue"
	"github.com/natikgadzhi/notion-mirror/internal/scheduler"
	"github.com/natikgadzhi/notion-mirror/internal/server"
	"github.com/natikgadzhi/notion-mirror/internal/storage"
	"github.com/natikgadzhi/notion-mirror/internal/sync"
)

// shutdownTimeout bounds in-flight request draining on exit.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mirror service",
	Long: `Serve starts the webhook listener, the sync worker and, when
sync.interval_seconds is set, the periodic rescanner.

Webhook events and rescans enqueue jobs; a single worker drains the
queue and mirrors pages into the configured storage backends.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: probe config.toml, config.yaml, config.yml)")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := setupLogger(nil, verbose)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := notion.NewClient(strings.TrimSpace(cfg.Notion.APIKey), logger)

	bindings, err := buildBindings(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	q, err := queue.New(queue.Config{Name: cfg.Queue.Name, RedisURL: cfg.Queue.RedisURL}, logger)
	if err != nil {
		return fmt.Errorf("initializing queue: %w", err)
	}
	defer q.Close()

	syncer := sync.NewSyncer(client, bindings, cfg.Sync.EffectiveMaxDepth(), logger)
	worker := sync.NewWorker(q, syncer, logger)
	go worker.Run(ctx)

	// scan everything once at startup so mirrors converge even if no
	// webhook ever fires
	scheduler.EnqueueScans(ctx, q, bindings, logger)

	if cfg.Sync.Interval() > 0 {
		rescanner := scheduler.New(q, bindings, cfg.Sync.Interval(), logger)
		go rescanner.Run(ctx)
	}

	srv := server.New(q, bindings, server.Config{
		Secret:      cfg.Webhook.Secret,
		MaxEventAge: cfg.Webhook.MaxEventAge(),
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Webhook.Addr())
		errCh <- srv.Start(cfg.Webhook.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// buildBindings opens each database's storage backend and lists its
// data sources. Any failure here is fatal at startup.
func buildBindings(ctx context.Context, cfg *config.Config, client *notion.Client, logger *slog.Logger) (*sync.Bindings, error) {
	keys := make([]string, 0, len(cfg.Databases))
	for key := range cfg.Databases {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var all []*sync.Binding
	for _, key := range keys {
		db := cfg.Databases[key]
		backend := db.Storage[0]

		store, err := storage.Open(ctx, backend.Type, backend.SettingsAsStrings(), logger)
		if err != nil {
			return nil, fmt.Errorf("opening storage for database %s: %w", key, err)
		}

		// config may carry a share URL or an undashed id; webhooks
		// deliver dashed UUIDs
		databaseID := notion.NormalizeDatabaseID(db.ID)

		dataSources, err := client.ListDataSources(ctx, databaseID)
		if err != nil {
			return nil, fmt.Errorf("listing data sources for database %s: %w", key, err)
		}
		if len(dataSources) == 0 {
			return nil, fmt.Errorf("database %s has no data sources", key)
		}

		logger.Info("configured database",
			"database", key,
			"id", databaseID,
			"storage", backend.Type,
			"data_sources", len(dataSources),
		)

		all = append(all, &sync.Binding{
			DatabaseID:  databaseID,
			DataSources: dataSources,
			Store:       store,
			KeyMap:      db.EffectiveKeyMap(),
			Includes:    db.IncludeSet(),
		})
	}
	return sync.NewBindings(all), nil
}
