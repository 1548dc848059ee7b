package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/csrf"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/discovery"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/userinfo"
)

const (
	redisPingTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// app wires the device flow, its optional Redis backing and the status server
type app struct {
	cfg      Config
	logger   *zap.Logger
	console  *console
	flow     *deviceflow.Flow
	redis    *redis.Client
	csrf     *csrf.Manager
	registry *prometheus.Registry

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

func newApp(ctx context.Context, cfg Config, logger *zap.Logger, out io.Writer, opts ...deviceflow.Option) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		console: &console{out: out, showQR: cfg.ShowQR},
	}

	client := oauth.NewClient(
		oauth.WithTimeout(cfg.HTTPTimeout),
		oauth.WithUserAgent("oauth2-device-client/"+Version),
		oauth.WithLogger(logger.Named("http")),
	)

	resolverOpts := []discovery.Option{discovery.WithLogger(logger.Named("discovery"))}
	var csrfStore csrf.Store = csrf.NewMemoryStore()

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		a.redis = redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}

		resolverOpts = append(resolverOpts, discovery.WithCache(discovery.NewRedisCache(a.redis), cfg.DiscoveryCacheTTL))
		csrfStore = csrf.NewRedisStore(a.redis)
		logger.Info("using Redis for discovery cache and csrf tokens", zap.String("addr", redisOpts.Addr))
	}

	var err error
	if a.csrf, err = csrf.NewManager(csrfStore, []byte(cfg.CSRFSecret), csrf.DefaultExpiry, logger.Named("csrf")); err != nil {
		a.closeRedis()
		return nil, err
	}

	flowOpts := []deviceflow.Option{
		deviceflow.WithLogger(logger.Named("deviceflow")),
		deviceflow.WithSlowDownIncrement(cfg.SlowDownIncrement),
		deviceflow.WithMaxTransientFailures(cfg.MaxPollFailures),
		deviceflow.WithObserver(a.console.progress),
		deviceflow.WithPollObserver(a.console.pollFailed),
	}
	a.flow = deviceflow.NewFlow(
		cfg.ClientConfig(),
		client,
		discovery.NewResolver(client, resolverOpts...),
		userinfo.NewFetcher(client, userinfo.WithLogger(logger.Named("userinfo"))),
		append(flowOpts, opts...)...,
	)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(deviceflow.MetricsCollectors()...)
	a.registry.MustRegister(collectors.NewGoCollector())

	return a, nil
}

// startStatusServer listens on STATUS_ADDR when configured
func (a *app) startStatusServer() error {
	if a.cfg.StatusAddr == "" {
		return nil
	}

	srv, err := newServer(a.flow, a.csrf, a.registry, a.logger.Named("status"))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.cfg.StatusAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.StatusAddr, err)
	}

	a.listener = ln
	a.httpServer = srv.httpServer(a.cfg.StatusAddr)
	a.serveErr = make(chan error, 1)

	go func() {
		a.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
		close(a.serveErr)
	}()
	return nil
}

// statusURL returns the base URL of the running status server
func (a *app) statusURL() string {
	if a.listener == nil {
		return ""
	}
	return "http://" + a.listener.Addr().String()
}

// Run executes the device flow and prints the outcome
func (a *app) Run(ctx context.Context) (*deviceflow.Result, error) {
	if err := a.startStatusServer(); err != nil {
		return nil, err
	}

	res, err := a.flow.Run(ctx, a.display)
	if err != nil {
		return nil, err
	}

	a.console.welcome(res.Profile)
	a.logger.Info("device flow completed",
		zap.String("sub", res.Profile.Subject),
		zap.Time("token_expiry", res.Token.Expiry),
	)
	return res, nil
}

func (a *app) display(_ context.Context, da *deviceflow.DeviceAuthorization) error {
	if err := a.console.showCode(da); err != nil {
		return err
	}
	if u := a.statusURL(); u != "" {
		a.logger.Info("status page available", zap.String("url", u+"/device"))
	}
	return nil
}

// Close stops the status server and releases Redis
func (a *app) Close() error {
	var errs []error
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down status server: %w", err))
			if err := a.httpServer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing status server: %w", err))
			}
		}
		if err, ok := <-a.serveErr; ok && err != nil {
			errs = append(errs, fmt.Errorf("status server: %w", err))
		}
	}
	if err := a.closeRedis(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeRedis() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil {
		return fmt.Errorf("closing Redis connection: %w", err)
	}
	return nil
}
