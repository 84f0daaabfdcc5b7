// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tomatxt/internal/api"
	"github.com/starford/tomatxt/internal/index"
	"github.com/starford/tomatxt/internal/mcpserver"
	"github.com/starford/tomatxt/internal/noteservice"
	"github.com/starford/tomatxt/internal/pomodoro"
	"github.com/starford/tomatxt/internal/sse"
	"github.com/starford/tomatxt/internal/storage"
	"github.com/starford/tomatxt/internal/watch"
)

// Core bundles the components every entry point needs: the notes
// directory, the optional search index and the note service on top.
type Core struct {
	Dir     string
	Store   storage.Provider
	Index   *index.DB
	Service *noteservice.Service
}

// Close releases the index, if one was opened.
func (c *Core) Close() error {
	if c.Index == nil {
		return nil
	}
	return c.Index.Close()
}

func sqlitePath(cfg *Config, notesDir string) string {
	if cfg.SQLite.Path != "" {
		return cfg.SQLite.Path
	}
	return filepath.Join(filepath.Dir(notesDir), "tomatxt.db")
}

// OpenCore resolves the notes directory, opens the index when enabled and
// loads every note into a new service.
func OpenCore(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...noteservice.Option) (*Core, error) {
	dir, err := storage.ResolveNotesDir(os.LookupEnv, cfg.Notes.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve notes dir: %w", err)
	}

	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Core{Dir: dir, Store: store}
	svcOpts := []noteservice.Option{noteservice.WithLogger(logger)}

	if cfg.SQLite.Enabled {
		db, err := index.Open(sqlitePath(cfg, dir))
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.Index = db
		svcOpts = append(svcOpts, noteservice.WithIndex(db))
	}

	svc, err := noteservice.Open(ctx, storage.NewNotes(store, logger, cfg.Notes.Concurrency), append(svcOpts, opts...)...)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("load notes: %w", err)
	}
	c.Service = svc
	return c, nil
}

// SyncIndex brings the search index up to date with the notes directory
// without loading the note service.
func SyncIndex(cfg *Config, logger *slog.Logger) error {
	dir, err := storage.ResolveNotesDir(os.LookupEnv, cfg.Notes.Dir)
	if err != nil {
		return fmt.Errorf("resolve notes dir: %w", err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(sqlitePath(cfg, dir))
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	return index.Sync(db, store, logger)
}

func (a *application) setup(opts []Option) (*Config, *slog.Logger, error) {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := a.config.App.NewLogger(out)
	slog.SetDefault(logger)
	return a.config, logger, nil
}

// RunMCP serves the note tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	cfg, logger, err := app.setup(opts)
	if err != nil {
		return err
	}

	c, err := OpenCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting", slog.String("notes_dir", c.Dir))
	return mcpserver.New(c.Service).ServeStdio()
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	cfg, logger, err := app.setup(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_dir", cfg.Notes.Dir),
		slog.Bool("sqlite_enabled", cfg.SQLite.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := OpenCore(ctx, cfg, logger, noteservice.WithNotifier(func(ev noteservice.Event) {
		broker.PublishNoteEvent(ev.Kind, ev.ID, ev.RootID)
	}))
	if err != nil {
		return err
	}
	defer c.Close()

	timer := pomodoro.NewTimer(pomodoro.Init(cfg.Pomodoro.WorkMinutes, cfg.Pomodoro.BreakMinutes))
	timer.OnChange(func(_, next pomodoro.State) {
		broker.PublishTimer(next)
	})

	apiRouter := api.NewRouter(c.Service, timer, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := watch.Watch(gCtx, c.Dir, cfg.Watch.Debounce, logger, func(ctx context.Context) error {
				_, err := c.Service.ReloadAll(ctx)
				return err
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Pomodoro ticker. Finished phases are switched by the timer itself.
	g.Go(func() error {
		return timer.Run(gCtx, time.Second)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stops the watcher and the ticker when a signal, not ctx, ended the run.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
