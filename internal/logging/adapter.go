package logging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Adapter exposes a zerolog.Logger through slog-style context methods, so it
// satisfies netidentity.Logger and netidentity.DebugLogger.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter wraps logger.
func NewAdapter(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// WarnContext logs msg at warn level with alternating key/value args.
func (a *Adapter) WarnContext(ctx context.Context, msg string, args ...any) {
	a.write(ctx, a.logger.Warn(), msg, args)
}

// InfoContext logs msg at info level with alternating key/value args.
func (a *Adapter) InfoContext(ctx context.Context, msg string, args ...any) {
	a.write(ctx, a.logger.Info(), msg, args)
}

func (a *Adapter) write(ctx context.Context, event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}

	if id := RequestID(ctx); id != "" {
		event = event.Str("request_id", id)
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			event = event.Interface("!BADKEY", key)
			break
		}
		event = event.Interface(key, args[i+1])
	}

	event.Msg(msg)
}
