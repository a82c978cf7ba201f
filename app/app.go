// Package app assembles the LinkHoard components from a loaded
// configuration: telemetry, the request cache and its sweeper, the
// admission controller, the credential store, the resilient client, and
// the agent-facing tool catalog. It owns their lifecycles; Shutdown
// releases everything New started.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/linkhoard/linkhoard/bookmarks"
	"github.com/linkhoard/linkhoard/cache"
	"github.com/linkhoard/linkhoard/client"
	"github.com/linkhoard/linkhoard/config"
	"github.com/linkhoard/linkhoard/observe"
	"github.com/linkhoard/linkhoard/ratelimit"
	"github.com/linkhoard/linkhoard/token"
	"github.com/linkhoard/linkhoard/tools"
)

// Version is stamped by the build; it rides along on telemetry.
var Version = "dev"

// App is the assembled application.
type App struct {
	Client    *client.Client
	Bookmarks *bookmarks.Service
	Tools     *tools.Registry

	cfg      config.Config
	observer observe.Observer
	sweeper  *cache.Sweeper
	tokens   *token.Store

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option adjusts how New assembles the App.
type Option func(*options)

type options struct {
	transport client.Transport
}

// WithTransport replaces the HTTP transport, primarily for tests.
func WithTransport(t client.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New assembles an App from the configuration. It performs no network
// calls; authentication happens on Login or when a pre-issued token is
// configured.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = client.NewHTTPTransport(nil)
	}

	observer, err := observe.NewObserver(ctx, observerConfig(cfg.Observe))
	if err != nil {
		return nil, fmt.Errorf("app: telemetry setup: %w", err)
	}

	app := &App{cfg: cfg, observer: observer}

	metrics, err := observe.NewMetrics(observer.Meter())
	if err != nil {
		app.shutdownPartial(ctx)
		return nil, fmt.Errorf("app: metrics setup: %w", err)
	}

	var requestCache *cache.RequestCache
	if cfg.Cache.MaxEntries > 0 {
		requestCache = cache.New(cache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			DefaultTTL: cfg.Cache.TTL,
		})
		if cfg.Cache.SweepInterval > 0 {
			app.sweeper = cache.NewSweeper(requestCache, cfg.Cache.SweepInterval)
			app.sweeper.Start()
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Limit > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		})
	}

	app.tokens, err = token.NewStore(token.Config{
		BaseURL:     cfg.BaseURL,
		Transport:   o.transport,
		LoginPath:   cfg.Auth.LoginPath,
		RefreshPath: cfg.Auth.RefreshPath,
		RefreshLead: cfg.Auth.RefreshLead,
		Logger:      observer.Logger(),
	})
	if err != nil {
		app.shutdownPartial(ctx)
		return nil, fmt.Errorf("app: token store: %w", err)
	}
	if cfg.Auth.RefreshLead > 0 {
		app.tokens.ScheduleRefresh(cfg.Auth.RefreshLead)
	}
	if cfg.Auth.Token != "" {
		app.tokens.SetToken(cfg.Auth.Token)
	}

	app.Client, err = client.New(client.Config{
		BaseURL:        cfg.BaseURL,
		Transport:      o.transport,
		Cache:          requestCache,
		Limiter:        limiter,
		Tokens:         app.tokens,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		CacheTTL:       cfg.Cache.TTL,
		HealthPath:     cfg.HealthPath,
		Logger:         observer.Logger(),
		Metrics:        metrics,
	})
	if err != nil {
		app.shutdownPartial(ctx)
		return nil, fmt.Errorf("app: client: %w", err)
	}

	app.Bookmarks = bookmarks.NewService(app.Client)
	app.Tools = tools.NewRegistry(app.Bookmarks)

	return app, nil
}

// Login authenticates with the configured identity and secret and returns
// the upstream user identity.
func (a *App) Login(ctx context.Context) (string, error) {
	if a.cfg.Auth.Identity == "" {
		return "", errors.New("app: no identity configured")
	}
	return a.tokens.Authenticate(ctx, a.cfg.Auth.Identity, a.cfg.Auth.Secret)
}

// Tokens exposes the credential store.
func (a *App) Tokens() *token.Store {
	return a.tokens
}

// Logger returns the application logger.
func (a *App) Logger() observe.Logger {
	return a.observer.Logger()
}

// HealthCheck probes the upstream service.
func (a *App) HealthCheck(ctx context.Context) bool {
	return a.Client.HealthCheck(ctx)
}

// Shutdown stops the sweeper and the refresh timer and flushes telemetry.
// Safe to call more than once; later calls return the first outcome.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdownPartial(ctx)
	})
	return a.shutdownErr
}

// shutdownPartial releases whatever New has started so far. Used both by
// Shutdown and by New's error paths.
func (a *App) shutdownPartial(ctx context.Context) error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.tokens != nil {
		a.tokens.Close()
	}

	var errs []error
	if a.observer != nil {
		if err := a.observer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// observerConfig maps the flat configuration onto the telemetry setup.
// An empty or "none" exporter leaves that subsystem disabled.
func observerConfig(oc config.ObserveConfig) observe.Config {
	return observe.Config{
		ServiceName: oc.ServiceName,
		Version:     Version,
		Tracing: observe.TracingConfig{
			Enabled:   oc.TracingExporter != "" && oc.TracingExporter != "none",
			Exporter:  oc.TracingExporter,
			SamplePct: oc.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  oc.MetricsExporter != "" && oc.MetricsExporter != "none",
			Exporter: oc.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   oc.LogLevel,
		},
	}
}
