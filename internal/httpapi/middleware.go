package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/schnitzel/netidentity/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware keeps an incoming X-Request-ID only when it is a UUID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		incoming := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(incoming); err != nil {
			incoming = ""
		}

		ctx, id := logging.WithRequestID(r.Context(), incoming)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(_ io.Writer, params handlers.LogFormatterParams) {
	event := s.logger.Info()
	if params.StatusCode >= http.StatusInternalServerError {
		event = s.logger.Error()
	}

	event.
		Str("method", params.Request.Method).
		Str("path", params.URL.Path).
		Int("status", params.StatusCode).
		Int("size", params.Size).
		Str("request_id", logging.RequestID(params.Request.Context())).
		Time("started", params.TimeStamp).
		Msg("http request")
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintln(args...))
}
