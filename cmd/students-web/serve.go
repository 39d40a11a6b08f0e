package main

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

	"github.com/aanand-mishra/students-web/internal/config"
	"github.com/aanand-mishra/students-web/internal/http/handlers/student"
	"github.com/aanand-mishra/students-web/internal/http/middleware"
	"github.com/aanand-mishra/students-web/internal/http/router"
	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/storage/mongo"
	"github.com/aanand-mishra/students-web/internal/storage/sqlite"
	"github.com/aanand-mishra/students-web/internal/upload"
	"github.com/aanand-mishra/students-web/internal/validate"
	"github.com/aanand-mishra/students-web/internal/views"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration YAML file")

	return cmd
}

// serve runs the server until SIGINT/SIGTERM.
//
// STARTUP SEQUENCE:
//  1. Initialise the logger
//  2. Connect to the configured storage backend
//  3. Build the upload store, validator and views
//  4. Register all HTTP routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal arrives, then shut down gracefully
func serve(ctx context.Context, cfg *config.Config) error {
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-web",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer store.Close(context.Background())

	log.Info("storage initialised", slog.String("driver", cfg.Storage.Driver))

	uploads, imageDir, err := newUploadStore(cfg)
	if err != nil {
		return fmt.Errorf("initialise upload store: %w", err)
	}

	pages, err := views.New()
	if err != nil {
		return err
	}

	metrics := middleware.NewMetrics(middleware.MetricsConfig{})

	handler := router.New(student.Deps{
		Storage:   store,
		Uploader:  upload.New(uploads, uploadConfig(cfg)),
		Validator: validate.New(),
		Views:     pages,
		Prefix:    cfg.RoutePrefix,
		Metrics:   metrics,
	}, router.Options{
		Logger:   log,
		Metrics:  metrics,
		ImageDir: imageDir,
	})

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: handler,

		// Leave room for a 5 MiB upload on a slow link.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ListenAndServe returns http.ErrServerClosed when Shutdown() is called.
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	select {
	case <-done:
		log.Info("shutdown signal received, stopping server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server encountered an error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return sqlite.New(cfg)
	default:
		return mongo.New(ctx, cfg)
	}
}

// newUploadStore returns the configured store and, for the disk driver, the
// directory to serve under /images/.
func newUploadStore(cfg *config.Config) (upload.Store, string, error) {
	if cfg.Upload.Driver == "s3" {
		client := upload.NewS3Client(upload.S3Options{
			Region:    cfg.Upload.S3.Region,
			Endpoint:  cfg.Upload.S3.Endpoint,
			AccessKey: cfg.Upload.S3.AccessKey,
			SecretKey: cfg.Upload.S3.SecretKey,
		})
		return upload.NewS3Store(client, cfg.Upload.S3.Bucket, cfg.Upload.S3.Prefix), "", nil
	}

	disk, err := upload.NewDiskStore(cfg.Upload.Dir)
	if err != nil {
		return nil, "", err
	}
	return disk, disk.Dir(), nil
}

func uploadConfig(cfg *config.Config) *upload.Config {
	c := upload.DefaultConfig()
	c.MaxFileSize = cfg.Upload.MaxFileSize
	c.AllowedTypes = cfg.Upload.Allowed
	return c
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
