package cmd

import (
	"log/slog"
	"testing"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "ingest": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestInitLoggerLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	logger := initLogger()
	if logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug logging enabled without DEBUG env")
	}

	t.Setenv("DEBUG", "1")
	logger = initLogger()
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("DEBUG env did not enable debug logging")
	}
}
