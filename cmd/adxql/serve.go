package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/paveg/adxql/internal/server"
)

func addServeCommand(app *kingpin.Application, g *globals) {
	var listen string

	cmd := app.Command("serve", "Serve the HTTP API.")
	cmd.Flag("listen", "Listen address, overrides the configuration.").StringVar(&listen)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		cfg, err := g.load()
		if err != nil {
			return err
		}
		if listen != "" {
			cfg.ListenAddr = listen
		}
		logger := newLogger(cfg)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		r, metrics, err := newClusterResolver(cfg, logger, reg)
		if err != nil {
			return err
		}
		defer r.close()

		var gatherer prometheus.Gatherer
		if cfg.MetricsEnabled {
			gatherer = reg
		}
		srv := server.New(cfg.ListenAddr, r.Resolver,
			server.WithLogger(logger),
			server.WithDefaultDatabase(cfg.DefaultDatabase),
			server.WithSchemaTTL(cfg.SchemaTTL),
			server.WithMetrics(metrics, gatherer),
			server.WithRefreshHook(r.invalidate),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Warm the cache; failures are retried on first use.
		if err := r.ResolveAndCacheSchema(ctx); err != nil {
			level.Warn(logger).Log("msg", "initial schema resolution failed", "err", err)
		}
		return srv.Run(ctx)
	})
}
