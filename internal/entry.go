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
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/starford/recipebox/internal/api"
	"github.com/starford/recipebox/internal/attachments"
	"github.com/starford/recipebox/internal/auth"
	"github.com/starford/recipebox/internal/mcpserver"
	"github.com/starford/recipebox/internal/recipeservice"
	"github.com/starford/recipebox/internal/sse"
	"github.com/starford/recipebox/internal/storage"
	"github.com/starford/recipebox/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("uploads_driver", cfg.Uploads.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker()
	defer broker.Close()

	deps, err := app.build(ctx, recipeservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer deps.close()

	apiRouter := api.NewRouter(deps.svc, api.RouterConfig{
		AllowedOrigin:  cfg.App.HTTP.AllowedOrigin,
		RateLimit:      cfg.App.HTTP.RateLimit,
		RateBurst:      cfg.App.HTTP.RateBurst,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		Events:         broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if deps.document != "" {
		watcher := watch.NewDocument(deps.document, logger, func() {
			broker.Publish(sse.Event{Type: sse.KindRecipesChanged, Data: struct{}{}})
		})
		g.Go(func() error {
			if err := watcher.Run(gCtx); err != nil {
				logger.Warn("document watcher stopped", slog.String("error", err.Error()))
			}
			return nil
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits once the server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the recipe tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	// Stdout carries the protocol.
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.logger()

	deps, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer deps.close()

	return mcpserver.New(deps.svc, app.config.Auth.Token, app.version).ServeStdio()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger installs the structured JSON logger as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

type dependencies struct {
	svc *recipeservice.Service
	// document is the JSON file to watch; empty for other drivers.
	document string
	closers  []func() error
}

func (d *dependencies) close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// build wires the store, attachment store and credential check into a service.
func (a *application) build(ctx context.Context, opts ...recipeservice.Option) (*dependencies, error) {
	cfg := a.config
	deps := &dependencies{}

	var store storage.Provider
	switch cfg.Storage.Driver {
	case StorageDriverSQLite:
		db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		deps.closers = append(deps.closers, db.Close)
		store = db
	default:
		doc := storage.NewJSONFile(afero.NewOsFs(), cfg.Storage.Path)
		if cfg.Storage.CreateIfMissing {
			if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
			if err := doc.EnsureExists(); err != nil {
				return nil, fmt.Errorf("init storage: %w", err)
			}
		}
		deps.document = doc.Path()
		store = doc
	}

	var files attachments.Store
	switch cfg.Uploads.Driver {
	case UploadsDriverMinIO:
		m, err := attachments.NewMinIO(ctx, attachments.MinIOConfig{
			Endpoint:  cfg.Uploads.MinIO.Endpoint,
			AccessKey: cfg.Uploads.MinIO.AccessKey,
			SecretKey: cfg.Uploads.MinIO.SecretKey,
			Bucket:    cfg.Uploads.MinIO.Bucket,
		})
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("init uploads: %w", err)
		}
		files = m
	default:
		local, err := attachments.NewLocal(afero.NewOsFs(), cfg.Uploads.Dir)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("init uploads: %w", err)
		}
		files = local
	}

	deps.svc = recipeservice.NewService(store, files, auth.NewStaticToken(cfg.Auth.Token), opts...)
	return deps, nil
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
