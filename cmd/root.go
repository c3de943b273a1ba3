// Package cmd contains the ragchat CLI commands.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "RAG chatbot for course materials",
	Long: `ragchat answers questions about course materials.

It ingests course transcripts into a PostgreSQL vector store and serves
a JSON API where an AI assistant searches the indexed content to answer
questions with source attribution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the default structured logger. DEBUG enables debug
// level; logs go to stderr so stdout stays clean for command output.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
