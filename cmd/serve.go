package cmd

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

	"github.com/spf13/cobra"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/api"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/app"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/config"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // answering a query can take a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the JSON API server. Course documents found in the configured
docs directory are ingested on startup; files already indexed are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes the application, ingests startup documents, and
// serves the API until SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting ragchat server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ingestStartupDocs(ctx, a, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Agent:       a.Agent,
		Sessions:    a.Sessions,
		Catalog:     a.Knowledge,
		Pool:        a.DBPool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.HTTPAddr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// ingestStartupDocs indexes the configured docs directory. A missing
// directory or a partial failure is logged, not fatal: the server can
// still answer against previously indexed content.
func ingestStartupDocs(ctx context.Context, a *app.App, logger *slog.Logger) {
	dir := a.Config.DocsDir
	if _, err := os.Stat(dir); err != nil {
		logger.Warn("docs directory not found, skipping startup ingestion", "dir", dir)
		return
	}

	result, err := a.Ingester.Directory(ctx, dir)
	if err != nil {
		logger.Error("startup ingestion failed", "dir", dir, "error", err)
		return
	}

	logger.Info("startup ingestion complete",
		"courses_added", result.CoursesAdded,
		"chunks_added", result.ChunksAdded,
		"files_skipped", result.FilesSkipped,
		"files_failed", result.FilesFailed,
		"duration", result.Duration,
	)
}
