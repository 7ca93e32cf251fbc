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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/munin/internal/api"
	"github.com/halvard/munin/internal/engine"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/mcpserver"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/remote"
	"github.com/halvard/munin/internal/scratch"
	"github.com/halvard/munin/internal/sse"
)

func buildApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.client == nil {
		var ropts []remote.GitHubOption
		if app.config.Mirror.APIBaseURL != "" {
			ropts = append(ropts, remote.WithBaseURL(app.config.Mirror.APIBaseURL))
		}
		app.client = remote.NewGitHub(ropts...)
	}
	return app, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := buildApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("repos", len(cfg.Mirror.Repos)),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	// changed wakes the scratch exporter after each reconciliation.
	changed := make(chan struct{}, 1)
	eng := engine.New(app.client, db, cfg.Mirror.RepoList(), logger,
		engine.WithOnChange(func(entries int) {
			broker.PublishEntriesUpdated(entries)
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
		engine.WithOnCommit(func(repo models.RepoKey, sha string) {
			broker.PublishCommit(string(repo), sha)
		}))

	// The session stays usable when the initial load fails; a later
	// POST /reload can recover once the remote is reachable.
	if problems, err := eng.Load(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	} else if len(problems) > 0 {
		logger.Warn("initial load finished with problems", slog.Int("count", len(problems)))
	}

	apiRouter := api.NewRouter(eng, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Mirror.Scratch != "" {
		dir, err := scratch.New(cfg.Mirror.Scratch, logger)
		if err != nil {
			return fmt.Errorf("init scratch dir: %w", err)
		}
		if err := dir.Export(eng.Entries()); err != nil {
			logger.Warn("initial scratch export failed", slog.String("error", err.Error()))
		}
		g.Go(func() error {
			return dir.Watch(gCtx, eng)
		})
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-changed:
					if err := dir.Export(eng.Entries()); err != nil {
						logger.Warn("scratch export failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

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
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP loads the session and serves the MCP tools over stdio. Logs go to
// stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := buildApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	eng := engine.New(app.client, db, cfg.Mirror.RepoList(), logger)
	if problems, err := eng.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	} else if len(problems) > 0 {
		logger.Warn("load finished with problems", slog.Int("count", len(problems)))
	}

	return mcpserver.New(eng, db).ServeStdio()
}
