package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/app"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index course documents into the vector store",
	Long: `Parses course documents from a directory, chunks them, and stores the
embedded chunks in PostgreSQL. Courses that are already indexed are
skipped, so re-running against the same directory is safe.

Without an argument the configured docs directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return runIngest(dir)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dir == "" {
		dir = cfg.DocsDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	result, err := a.Ingester.Directory(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %s in %s\n", dir, result.Duration.Round(time.Millisecond))
	fmt.Printf("  Courses added:  %d\n", result.CoursesAdded)
	fmt.Printf("  Chunks added:   %d\n", result.ChunksAdded)
	fmt.Printf("  Files skipped:  %d\n", result.FilesSkipped)
	if result.FilesFailed > 0 {
		fmt.Printf("  Files failed:   %d (see logs)\n", result.FilesFailed)
	}

	return nil
}
