// Package logging builds the zerolog logger used by netidentityd and adapts
// it to the slog-shaped interfaces the resolver accepts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type ctxKey string

const requestIDKey ctxKey = "logging_request_id"

var isTerminalFn = term.IsTerminal

// Config controls logger construction.
type Config struct {
	Level  string // "trace", "debug", "info", "warn", "error", "disabled"
	Format string // "json", "console", or "auto"
}

// New returns a logger writing to out.
func New(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(selectWriter(cfg.Format, out)).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel validates a textual level. An empty value means info.
func ParseLevel(value string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(normalized)
}

func parseLevel(value string) zerolog.Level {
	level, err := ParseLevel(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: invalid level %q; using %q\n", value, "info")
		return zerolog.InfoLevel
	}
	return level
}

func selectWriter(format string, out io.Writer) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
		return out
	case "auto", "":
		if isTerminal(out) {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
		return out
	default:
		fmt.Fprintf(os.Stderr, "logging: invalid format %q; using %q\n", format, "json")
		return out
	}
}

func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok || file == nil {
		return false
	}
	return isTerminalFn(int(file.Fd()))
}

// WithRequestID stores (or generates) a request ID on the context.
func WithRequestID(ctx context.Context, requestID string) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID), requestID
}

// RequestID returns the request ID stored on ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
