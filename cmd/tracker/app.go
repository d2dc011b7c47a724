package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/transfer-tracker/chain"
	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/indexer"
	"github.com/vultisig/transfer-tracker/internal/api"
	"github.com/vultisig/transfer-tracker/internal/logging"
	"github.com/vultisig/transfer-tracker/internal/metrics"
	"github.com/vultisig/transfer-tracker/internal/publish"
	"github.com/vultisig/transfer-tracker/tracker"
)

type app struct {
	cfg    *config.TrackerConfig
	logger *logrus.Logger
	store  *tracker.Store
	poller *tracker.Poller

	failFast bool

	pollerMetrics metrics.PollerMetrics
	chainMetrics  metrics.ChainMetrics
	metricsServer *metrics.Server
}

func loadConfig(opts *rootOptions) (*config.TrackerConfig, error) {
	if opts.envOnly {
		return config.ReadEnvConfig()
	}
	if opts.configName != "" {
		return config.ReadConfig(opts.configName, ".")
	}
	return config.ReadTrackerConfig()
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("loadConfig: %w", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)
	// snapshots go to stdout, logs must not interleave with them
	logger.SetOutput(os.Stderr)

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  tracker.NewStore(logger),

		failFast: opts.failFast,
	}

	services := []string{metrics.ServicePoller, metrics.ServiceChain}
	if cfg.Api.Enabled {
		services = append(services, metrics.ServiceHTTP)
	}
	a.metricsServer = metrics.NewMetricsServer(cfg.Metrics, services, logger)
	if a.metricsServer != nil {
		tm := metrics.NewTrackerMetrics()
		a.pollerMetrics = tm
		a.chainMetrics = tm
	}

	a.poller = tracker.NewPoller(
		logger,
		a.store,
		indexer.NewClient(logger, cfg.Indexer),
		cfg.Poll.Interval,
		cfg.Poll.StopOnSuccess,
		a.pollerMetrics,
	)
	return a, nil
}

func (a *app) chainService(ctx context.Context) (*chain.Service, error) {
	clients, err := chain.Clients(ctx, a.cfg.ChainList())
	if err != nil {
		return nil, fmt.Errorf("chain.Clients: %w", err)
	}
	return chain.NewService(a.logger, clients, a.cfg.ReceiptTimeout, a.chainMetrics), nil
}

// startBackground runs the metrics server, the status API (when enabled or forced)
// and the Redis publisher (when enabled) under eg until ctx is done.
func (a *app) startBackground(ctx context.Context, eg *errgroup.Group, forceAPI bool) error {
	if a.metricsServer != nil {
		eg.Go(func() error {
			return a.metricsServer.Run(ctx)
		})
	}

	if a.cfg.Api.Enabled || forceAPI {
		srv := api.NewServer(a.cfg.Api, a.logger, a.store, a.poller, a.metricsServer != nil)
		eg.Go(func() error {
			return srv.Start(ctx)
		})
	}

	if a.cfg.Redis.Enabled {
		client, err := publish.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("publish.NewRedisClient: %w", err)
		}
		publisher := publish.NewPublisher(a.logger, client, a.cfg.Redis.Channel)
		_, unsubscribe := a.store.Subscribe(publisher.Observe)
		eg.Go(func() error {
			defer func() {
				unsubscribe()
				_ = client.Close()
			}()
			return publisher.Run(ctx)
		})
	}
	return nil
}
