package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/pulse/agent"
	"github.com/jonwraymond/pulse/config"
	"github.com/jonwraymond/pulse/httpapi"
	"github.com/jonwraymond/pulse/observe"
)

const readHeaderTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the health, history and Prometheus endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PULSE_SERVER_ADDR)")
	return cmd
}

// newMux mounts the agent routes, the liveness route and, when the
// Prometheus exporter is active, the scrape endpoint for the agent's own
// registry.
func newMux(cfg *config.Config, a *agent.Agent) *http.ServeMux {
	mux := http.NewServeMux()
	a.Register(mux)
	mux.Handle("GET /healthz", httpapi.LivenessHandler())
	if g := a.Observer().Gatherer(); g != nil {
		mux.Handle("GET "+cfg.Server.PrometheusPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return mux
}

func serve(ctx context.Context, cfg *config.Config) error {
	// The server owns the process, so its providers become the otel globals.
	ocfg := cfg.ObserveConfig()
	ocfg.SetGlobal = true
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return err
	}
	defer shutdownObserver(obs)
	logger := obs.Logger()

	deps, err := connectDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := agent.New(ctx, cfg, agent.Options{Observer: obs, Probes: deps.probes()})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Middleware(newMux(cfg, a)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "http server listening",
			observe.F("addr", srv.Addr),
			observe.F("health_path", cfg.Health.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), a.Shutdown(sctx))
	})

	return g.Wait()
}
