package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/config"
	"github.com/miladsoleymani/topicsink/core"
	"github.com/miladsoleymani/topicsink/core/middleware"
	"github.com/miladsoleymani/topicsink/metrics"
	"github.com/miladsoleymani/topicsink/sink"
)

type runFlags struct {
	configPath        string
	outputDir         string
	interval          time.Duration
	missingConfig     string
	connectTimeout    time.Duration
	disconnectTimeout time.Duration
	metricsAddr       string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile subscriptions against the config file until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), g, f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "topicsink.conf", "Subscription config file, one \"name topic host port\" per line")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "data", "Directory receiving one <name>.raw file per subscription")
	cmd.Flags().DurationVar(&f.interval, "interval", 60*time.Second, "Interval between reconciliation ticks")
	cmd.Flags().StringVar(&f.missingConfig, "missing-config", "keep", "Behavior when the config file is unavailable (keep, stop)")
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 10*time.Second, "Bound on connecting and subscribing a worker")
	cmd.Flags().DurationVar(&f.disconnectTimeout, "disconnect-timeout", 2*time.Second, "Bound on stopping a worker")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	return cmd
}

func run(ctx context.Context, g *globalFlags, f *runFlags) error {
	if f.interval <= 0 {
		return errors.New("--interval must be positive")
	}
	policy, err := core.ParseMissingConfigPolicy(f.missingConfig)
	if err != nil {
		return err
	}

	logger := g.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := metrics.NewPrometheus(reg, "")

	if f.metricsAddr != "" {
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", f.metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	resolver := broker.Resolver{ConnectTimeout: f.connectTimeout}
	out := sink.NewDir(f.outputDir)

	r := core.NewReconciler(config.NewFileSource(f.configPath),
		core.WithBrokerFactory(resolver.ForSpec),
		core.WithSinkFactory(out.Open),
		core.WithLogger(logger),
		core.WithMetrics(prom),
		core.WithMissingConfigPolicy(policy),
		core.WithConnectTimeout(f.connectTimeout),
		core.WithDisconnectTimeout(f.disconnectTimeout),
		core.WithMiddleware(
			middleware.Recovery(logger),
			middleware.Logging(logger),
			middleware.Metrics(prom),
		),
	)

	logger.Info().
		Str("config", f.configPath).
		Str("output_dir", f.outputDir).
		Dur("interval", f.interval).
		Str("missing_config", policy.String()).
		Msg("starting topicsink")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	err = r.Run(ctx, ticker.C)
	logger.Info().Msg("all workers stopped")
	return err
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
