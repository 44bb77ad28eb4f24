// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/lattice/internal/api"
	"github.com/starford/lattice/internal/importer"
	"github.com/starford/lattice/internal/logstream"
	"github.com/starford/lattice/internal/mcpserver"
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/persist"
	"github.com/starford/lattice/internal/sse"
	"github.com/starford/lattice/internal/state"
	"github.com/starford/lattice/internal/storage"
	"github.com/starford/lattice/internal/tree"
	"github.com/starford/lattice/internal/treeservice"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{output: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openWorkspace opens the configured storage and starts a store seeded with
// its contents.
func openWorkspace(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Provider, *state.Store, error) {
	db, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	folders, items, err := db.Load(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load workspace: %w", err)
	}
	logger.Info("Workspace loaded",
		slog.String("driver", cfg.Storage.Driver),
		slog.Int("folders", len(folders)),
		slog.Int("items", len(items)))

	store := state.NewStore(state.State{Folders: folders, Items: items}, cfg.Tree.HistoryLimit)
	return db, store, nil
}

func newService(cfg *Config, store *state.Store, db storage.Provider, flusher *persist.Flusher) *treeservice.Service {
	return treeservice.NewService(store, db, treeservice.Options{
		Policy:       tree.Policy(cfg.Tree.Policy),
		Placeholders: cfg.Tree.Placeholders,
		BeforeSearch: flusher.Flush,
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("import_dir", cfg.Import.Dir),
		slog.String("move_policy", cfg.Tree.Policy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, store, err := openWorkspace(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	flusher := persist.New(store, db, cfg.Persist.FlushInterval, logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Log streaming hub.
	hub := logstream.NewHub(logger)
	defer hub.Close()

	onImport := func(path string, kinds []models.Kind) {
		broker.Publish(sse.Event{Type: sse.TypeImportApplied, Data: map[string]any{
			"path":  path,
			"kinds": kinds,
		}})
	}

	var imp *importer.Importer
	if cfg.Import.Dir != "" {
		// Ensure import directory exists.
		if err := os.MkdirAll(cfg.Import.Dir, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
		imp = importer.New(cfg.Import.Dir, db, store, logger)

		// Run initial sync.
		if err := imp.Sync(ctx, onImport); err != nil {
			logger.Warn("initial import failed", slog.String("error", err.Error()))
		}
	}

	// Build API service and router.
	svc := newService(cfg, store, db, flusher)
	apiRouter := api.NewRouter(svc, hub, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := store.Snapshot(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Persist changes in the background.
	g.Go(func() error {
		return flusher.Run(gCtx)
	})

	// Forward store changes to SSE clients.
	changes := store.Subscribe()
	g.Go(func() error {
		broker.Follow(gCtx, changes)
		return nil
	})

	// Start import watcher with SSE callback.
	if imp != nil {
		g.Go(func() error {
			if err := imp.Watch(gCtx, onImport); err != nil {
				logger.Error("import watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		// SSE and WebSocket handlers block until their clients go away.
		broker.Close()
		hub.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the background workers; the flusher writes a final snapshot.
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until stdin is closed. Logs go
// to stderr so they do not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, store, err := openWorkspace(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	flusher := persist.New(store, db, cfg.Persist.FlushInterval, logger)
	flushDone := make(chan error, 1)
	go func() { flushDone <- flusher.Run(ctx) }()

	srv := mcpserver.New(newService(cfg, store, db, flusher))
	logger.Info("MCP server starting on stdio")
	serveErr := srv.ServeStdio()

	cancel()
	if err := <-flushDone; err != nil {
		logger.Error("final flush failed", slog.String("error", err.Error()))
	}
	if serveErr != nil {
		return fmt.Errorf("mcp serve: %w", serveErr)
	}
	return nil
}

// LogStreamURL converts an HTTP server address into the WebSocket URL of a
// log channel.
func LogStreamURL(serverURL, channel string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/logs/" + channel
	u.RawPath = ""
	return u.String(), nil
}

// RunLogs follows one log channel and writes every line to the configured
// output until the context is cancelled or a signal arrives.
func RunLogs(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if app.channel == "" {
		return fmt.Errorf("channel is required")
	}

	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	wsURL, err := LogStreamURL(app.serverURL, app.channel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := logstream.NewClient(wsURL, cfg.Auth.Token, cfg.LogStream.Backoff(), logger)
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	g := new(errgroup.Group)
	g.Go(func() error { return client.Run(ctx) })
	g.Go(func() error {
		for line := range client.Lines() {
			if _, err := fmt.Fprintln(app.output, line); err != nil {
				client.Close()
				return err
			}
		}
		return nil
	})
	return g.Wait()
}
