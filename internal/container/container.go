package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"jellyneo/idb/internal/client"
	"jellyneo/idb/internal/config"
	"jellyneo/idb/internal/proxy"
	"jellyneo/idb/internal/queue"
	"jellyneo/idb/internal/service"
)

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Metrics *client.Metrics
	Fetcher client.Fetcher
	Queue   queue.Queue

	Service *service.Service
}

type Option func(*options)

type options struct {
	withQueue bool
	transport http.RoundTripper
}

// WithQueue connects to Redis and enables the queue operations of the service.
func WithQueue() Option {
	return func(o *options) { o.withQueue = true }
}

// WithTransport replaces the HTTP transport of the fetcher.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) { o.transport = transport }
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := &Container{
		Config:  cfg,
		Metrics: client.NewMetrics(),
	}

	var proxySupplier proxy.ProxySupplier
	if len(cfg.IDB.Proxies) > 0 && o.transport == nil {
		supplier, err := proxy.NewProxySupplier(ctx, cfg.IDB.Proxies, siteRoot(cfg.IDB.URLTemplate), 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
		}
		proxySupplier = supplier
	}

	container.Fetcher = client.NewFetcher(
		client.Options{
			UserAgent: cfg.IDB.UserAgent,
			Timeout:   cfg.IDB.Timeout,
			Transport: o.transport,
		},
		client.NewRetryPolicy(cfg.IDB.MaxAttempts, cfg.IDB.MinWait, cfg.IDB.MaxWait),
		proxySupplier,
		container.Metrics,
	)

	if o.withQueue {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		log.Info("✅ Connected to Redis successfully")

		redisQueue, err := queue.NewRedisQueue(ctx, rdb, queue.Options{
			StreamPrefix: cfg.Redis.StreamPrefix,
			Group:        cfg.Redis.ConsumerGroup,
		})
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		container.Queue = redisQueue
	}

	container.Service = service.NewService(
		container.Fetcher,
		container.Queue,
		container.Metrics,
		service.Options{
			URLTemplate: cfg.IDB.URLTemplate,
			MaxWorkers:  cfg.IDB.MaxWorkers,
			Limiter:     ratelimit.New(cfg.IDB.MaxRequestsPerSecond),
			MinIdleTime: cfg.Redis.MinIdleTime,
			MaxRequeues: cfg.Redis.MaxRequeues,
		},
	)

	return container, nil
}

// Run executes fn alongside the metrics endpoint, if one is configured, and
// stops the endpoint once fn returns.
func (c *Container) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.Config.Metrics.Addr == "" {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		return c.serveMetrics(gctx, done)
	})

	g.Go(func() error {
		defer close(done)
		return fn(gctx)
	})

	return g.Wait()
}

func (c *Container) serveMetrics(ctx context.Context, done <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              c.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("📈 Serving metrics on %s/metrics", c.Config.Metrics.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	if c.Queue == nil {
		return nil
	}

	log.Debug("Shutting down container...")
	if err := c.Queue.Close(); err != nil {
		return fmt.Errorf("failed to close queue: %w", err)
	}
	return nil
}

// siteRoot is the address proxies are checked against.
func siteRoot(template string) string {
	u, err := url.Parse(fmt.Sprintf(template, 1))
	if err != nil {
		return template
	}
	return u.Scheme + "://" + u.Host + "/"
}
