package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/schnitzel/netidentity"
	"github.com/schnitzel/netidentity/internal/config"
	"github.com/schnitzel/netidentity/internal/httpapi"
	"github.com/schnitzel/netidentity/internal/logging"
	identityprom "github.com/schnitzel/netidentity/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, cmd.ErrOrStderr())

			handler, err := buildHandler(cfg, logger, prom.NewRegistry())
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
			}

			srv := &http.Server{
				Handler:           handler,
				ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			}

			return serve(ctx, srv, ln, cfg.ShutdownTimeout, logger)
		},
	}

	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	return cmd
}

// buildHandler wires the resolver, its observability and the HTTP routes
// from cfg. Metrics are registered on registry when enabled.
func buildHandler(cfg *config.Config, logger zerolog.Logger, registry *prom.Registry) (http.Handler, error) {
	adapter := logging.NewAdapter(logger)

	opts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, netidentity.WithLogger(adapter))

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("register go collector: %w", err)
		}
		if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("register process collector: %w", err)
		}
		opts = append(opts, identityprom.WithRegisterer(registry))
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	resolver, err := netidentity.New(opts...)
	if err != nil {
		return nil, err
	}

	api := httpapi.New(resolver,
		httpapi.WithLogger(logger),
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
		httpapi.WithDebugReporter(netidentity.NewDebugReporter(adapter), cfg.DebugReports),
		httpapi.WithMetricsHandler(metricsHandler),
	)

	return api.Handler(), nil
}

// serve runs srv on ln until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("version", Version).
			Msg("Starting netidentityd")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down netidentityd")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
