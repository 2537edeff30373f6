package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/zap"

	"github.com/km-arc/go-tenancy/framework/config"
	"github.com/km-arc/go-tenancy/framework/container"
	"github.com/km-arc/go-tenancy/framework/providers"
	"github.com/km-arc/go-tenancy/framework/routing"
)

// Application is the top-level application kernel, like $app in Laravel's
// bootstrap/app.php. Providers fill its service collection; Build turns the
// collection into a tenant-aware container and boots the providers.
type Application struct {
	Config    *config.Config
	Log       logr.Logger
	Services  *container.Collection
	Providers *container.ProviderRegistry
	Metrics   *providers.MetricsServiceProvider

	zap       *zap.Logger
	buildOnce sync.Once
	container *container.Container[string]
	buildErr  error
}

// New loads configuration from envFiles and registers the framework providers.
func New(envFiles ...string) (*Application, error) {
	return NewWithConfig(config.Load(envFiles...))
}

// NewWithConfig is New with an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, z, err := providers.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	services := container.NewCollection()
	a := &Application{
		Config:    cfg,
		Log:       logger.WithName(cfg.App.Name),
		Services:  services,
		Providers: container.NewProviderRegistry(services),
		Metrics:   providers.NewMetricsProvider(),
		zap:       z,
	}

	// Framework core providers, same order as Laravel
	for _, p := range []container.Provider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: a.Log, Zap: z},
		a.Metrics,
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a provider. It fails once the application is built.
func (a *Application) Register(p container.Provider) error {
	return a.Providers.Register(p)
}

// Build creates the container, installs the tenancy middleware and boots the
// providers. Later calls return the same container.
func (a *Application) Build() (*container.Container[string], error) {
	a.buildOnce.Do(func() {
		a.container, a.buildErr = a.build()
	})
	return a.container, a.buildErr
}

func (a *Application) build() (*container.Container[string], error) {
	opts, err := a.Config.Container.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, container.WithLogger(a.Log), container.WithMetrics(a.Metrics.Metrics))

	c, err := container.Build[string](a.Services, opts...)
	if err != nil {
		return nil, err
	}

	router, err := container.ResolveShared[*routing.Router](c)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	// Middleware must precede the routes providers add while booting.
	router.Middleware(routing.Tenancy(c,
		routing.WithTenantHeader(a.Config.Container.TenantHeader),
		routing.WithTenantParam(a.Config.Container.TenantParam),
		routing.WithTenancyLogger(a.Log),
	))

	if err := a.Providers.Boot(c.Shared()); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	routing.Diagnostics(router, c, a.Metrics.Registry)

	a.Log.Info("Application booted",
		"env", a.Config.App.Env,
		"engine", a.Config.Container.Engine,
		"providers", len(a.Providers.Providers()),
		"services", len(c.Registrations()))
	return c, nil
}

// Container returns the built container, or nil before Build.
func (a *Application) Container() *container.Container[string] { return a.container }

// Router builds the application if needed and returns its router.
func (a *Application) Router() (*routing.Router, error) {
	c, err := a.Build()
	if err != nil {
		return nil, err
	}
	return container.ResolveShared[*routing.Router](c)
}

// Run builds the application and serves HTTP on APP_PORT until ctx is done,
// then drains in-flight requests and disposes the container.
func (a *Application) Run(ctx context.Context) error {
	router, err := a.Router()
	if err != nil {
		return err
	}

	addr := ":" + a.Config.App.Port
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	a.Log.Info("Serving", "name", a.Config.App.Name, "addr", ln.Addr().String(), "env", a.Config.App.Env)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err = <-served:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		<-served
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return errors.Join(err, a.Close(context.Background()))
}

// Close disposes the container, honoring asynchronous disposal, and flushes
// the logger.
func (a *Application) Close(ctx context.Context) error {
	var err error
	if a.container != nil {
		err = a.container.Shutdown(ctx)
	}
	if a.zap != nil {
		// Sync on a console sink fails on some platforms; nothing to act on.
		_ = a.zap.Sync()
	}
	return err
}

// ── Environment ──────────────────────────────────────────────────────────────

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }
