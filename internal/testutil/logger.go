package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output. Use it in
// tests to keep output quiet; log.Logger is a type alias for *slog.Logger,
// so the result works anywhere the internal/log package is accepted.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
