package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger used by both binaries. Records carry
// trace_id/span_id when the context holds a sampled span, plus the
// principal attached by the session guard.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(os.Stdout, env)
}

func NewLoggerTo(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler)).With(slog.String("service", "clinicfinder"))
}
