package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/SteelMorgan/condorlog/internal/clickhouse"
	"github.com/SteelMorgan/condorlog/internal/config"
	"github.com/SteelMorgan/condorlog/internal/metrics"
	"github.com/SteelMorgan/condorlog/internal/observability"
	"github.com/SteelMorgan/condorlog/internal/pollstate"
	"github.com/SteelMorgan/condorlog/internal/service"
	"github.com/SteelMorgan/condorlog/internal/watchlist"
	"github.com/SteelMorgan/condorlog/internal/writer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) buildWatchCommand() *cobra.Command {
	var watchPath string
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll every directory of the watch list until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchPath != "" {
				a.cfg.WatchMapPath = watchPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a.cfg, cmd.Root().Version, once)
		},
	}
	cmd.Flags().StringVarP(&watchPath, "watch", "w", "", "watch list (default WATCH_MAP_PATH)")
	cmd.Flags().BoolVar(&once, "once", false, "poll once and exit")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, version string, once bool) error {
	wl, err := watchlist.Load(cfg.WatchMapPath)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Int("targets", len(wl.Targets)).
		Msg("Starting condorlog watcher")

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "condorlog",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		SampleRatio:    cfg.TraceSampleRatio,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	} else {
		defer shutdown(context.Background())
	}

	deps := service.Deps{}

	if cfg.StateDBPath != "" {
		store, err := pollstate.NewBoltStore(cfg.StateDBPath)
		if err != nil {
			return err
		}
		deps.Store = store
	}

	if cfg.MetricsPort > 0 {
		reg := prometheus.NewRegistry()
		deps.Metrics = metrics.NewCollector(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsPort, reg); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	if cfg.ClickHouseEnabled {
		client, err := clickhouse.NewClientWithRetry(ctx, cfg.ClickHouseHost, cfg.ClickHousePort, cfg.ClickHouseDB, cfg.RetryConfig())
		if err != nil {
			if deps.Store != nil {
				deps.Store.Close()
			}
			return err
		}
		w := writer.NewClickHouseWriter(client, cfg.ClickHouseDB)
		if err := w.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not ensure ClickHouse schema")
		}
		deps.Writer = w
	}

	poller, err := service.NewPoller(wl.Targets, cfg.PollInterval, cfg.CacheOptions(), deps)
	if err != nil {
		return err
	}
	defer func() {
		if err := poller.Close(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	if once {
		_, err := poller.PollOnce(ctx)
		return err
	}

	err = poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Received shutdown signal")
		return nil
	}
	return err
}
