package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/sagalens"
	httpAdapter "github.com/aretw0/sagalens/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/sagalens/pkg/adapters/mcp"
	"github.com/aretw0/sagalens/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/sagalens/pkg/adapters/redis"
	"github.com/aretw0/sagalens/pkg/config"
	"github.com/aretw0/sagalens/pkg/observability"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// app is a monitor wired to the transport and history store chosen by the configuration.
type app struct {
	monitor   *sagalens.Monitor
	hub       *httpAdapter.Hub
	history   ports.SnapshotStore
	publisher *redisAdapter.Publisher
	registry  *prometheus.Registry
	redis     *backend.Client
	logger    *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.UsesRedis() {
		a.redis = redisAdapter.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	codec, err := redisAdapter.CodecByName(cfg.Redis.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.History {
	case config.HistoryRedis:
		a.history = redisAdapter.NewStore(a.redis,
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithLimit(cfg.HistoryLimit),
			redisAdapter.WithTTL(cfg.Redis.TTL),
			redisAdapter.WithCodec(codec),
		)
	default:
		a.history = memory.NewStore(memory.WithLimit(cfg.HistoryLimit))
	}

	// The hub always serves /events; it is the monitor's transport only in SSE mode.
	var transport ports.Transport
	switch cfg.Transport {
	case config.TransportRedis:
		a.hub = httpAdapter.NewHub(httpAdapter.WithHubLogger(logger))
		opts := []redisAdapter.PubSubOption{
			redisAdapter.WithChannel(cfg.Redis.Channel),
			redisAdapter.WithPubSubCodec(codec),
			redisAdapter.WithLogger(logger),
		}
		if cfg.Name != "" {
			opts = append(opts, redisAdapter.WithSource(cfg.Name))
		}
		a.publisher = redisAdapter.NewPublisher(a.redis, opts...)
		transport = a.publisher
	default:
		a.hub = httpAdapter.NewHub(
			httpAdapter.WithHubLogger(logger),
			httpAdapter.WithOnReady(func(ctx context.Context) { a.monitor.ClientReady(ctx) }),
		)
		transport = a.hub
	}

	a.monitor = sagalens.New(
		sagalens.WithLogger(logger),
		sagalens.WithName(cfg.Name),
		sagalens.WithExcept(cfg.Except...),
		sagalens.WithBufferLimit(cfg.BufferLimit),
		sagalens.WithHistory(a.history),
		sagalens.WithTransport(transport),
		sagalens.WithMetrics(observability.NewMetrics(a.registry)),
		sagalens.WithErrorHandler(func(err error) {
			logger.Error("saga task failed", "err", err)
		}),
	)
	return a, nil
}

// handler serves the ingest, dashboard and metrics endpoints.
func (a *app) handler() http.Handler {
	return httpAdapter.NewHandler(a.monitor, a.hub,
		httpAdapter.WithHistory(a.history),
		httpAdapter.WithGatherer(a.registry),
		httpAdapter.WithLogger(a.logger),
	)
}

// mcpServer exposes the monitor to MCP clients.
func (a *app) mcpServer() *mcpAdapter.Server {
	return mcpAdapter.NewServer(a.monitor, a.history, mcpAdapter.WithLogger(a.logger))
}

// watchReady arms the redis readiness watch. It is a no-op outside redis mode.
func (a *app) watchReady(ctx context.Context) error {
	if a.publisher == nil {
		return nil
	}
	return a.publisher.WatchReady(ctx, a.monitor.ClientReady)
}

func (a *app) Close() error {
	var errs []error
	if err := a.monitor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close monitor: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
