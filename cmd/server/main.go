package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LikhithSP/Knowledge-Tree/internal/httpapi"
	"github.com/LikhithSP/Knowledge-Tree/internal/layout"
	"github.com/LikhithSP/Knowledge-Tree/internal/orchestrator"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/cache"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/config"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/database"
	"github.com/LikhithSP/Knowledge-Tree/internal/platform/logging"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
	"github.com/LikhithSP/Knowledge-Tree/internal/unlock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store, "policy", cfg.Unlock.Policy, "layout", cfg.Layout.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app holds the wired dependencies of a running server.
type app struct {
	handler http.Handler
	service *orchestrator.Service
	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	policy, err := unlock.ParsePolicy(cfg.Unlock.Policy)
	if err != nil {
		return nil, err
	}
	mode, err := layout.ParseMode(cfg.Layout.Mode)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var (
		content     roadmap.ContentStore
		completions progress.CompletionStore
		events      progress.EventLogger = progress.NopEventLogger{}
		layoutCache roadmap.JSONCache
		apiOpts     []httpapi.Option
	)

	switch cfg.Store {
	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		pgContent, err := roadmap.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		pgProgress, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		content, completions = pgContent, pgProgress
		events = progress.NewPostgresEventLogger(db.Pool)
		apiOpts = append(apiOpts, httpapi.WithHealthCheck("database", db))
		slog.Info("database connected")
	default:
		content = roadmap.NewMemoryStore()
		completions = progress.NewMemoryStore()
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		content = roadmap.NewCachedStore(content, c, cfg.Cache.TTLDuration())
		layoutCache = c
		apiOpts = append(apiOpts, httpapi.WithHealthCheck("cache", c))
		slog.Info("cache connected")
	}

	if err := seedContent(ctx, cfg.ContentPath, content); err != nil {
		a.Close()
		return nil, err
	}

	engine := layout.NewEngine(layout.Config{
		HorizontalSpacing: cfg.Layout.HorizontalSpacing,
		VerticalSpacing:   cfg.Layout.VerticalSpacing,
		OriginX:           cfg.Layout.OriginX,
		OriginY:           cfg.Layout.OriginY,
		Columns:           cfg.Layout.Columns,
	}, mode)

	a.service = orchestrator.NewService(orchestrator.ServiceConfig{
		Content:       content,
		Completions:   completions,
		Events:        events,
		Engine:        engine,
		Policy:        policy,
		PassThreshold: cfg.Unlock.PassThreshold,
		LayoutCache:   layoutCache,
	})
	a.handler = httpapi.New(a.service, apiOpts...).Handler()
	return a, nil
}

// seedContent imports YAML roadmaps when the store holds none yet.
func seedContent(ctx context.Context, dir string, store roadmap.ContentStore) error {
	existing, err := store.ListRoadmaps(ctx)
	if err != nil {
		return fmt.Errorf("list roadmaps: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("roadmap content present, skipping import", "roadmaps", len(existing))
		return nil
	}

	loader, err := roadmap.NewLoader(dir)
	if err != nil {
		return err
	}
	if _, err := loader.Import(ctx, store); err != nil {
		return fmt.Errorf("import content: %w", err)
	}
	return nil
}
