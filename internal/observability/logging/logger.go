package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process-wide logger. Every record carries the
// service name so api and worker output can be told apart in a merged
// stream.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With(
		slog.String("app", "ragcore"),
		slog.String("service", service),
	)
}

// parseLevel accepts the standard slog level names plus "warning";
// anything unrecognized falls back to info.
func parseLevel(text string) slog.Level {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return slog.LevelInfo
	}
	return level
}
