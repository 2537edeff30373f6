package providers

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/km-arc/go-tenancy/framework/config"
	"github.com/km-arc/go-tenancy/framework/container"
	"github.com/km-arc/go-tenancy/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration.
//
// Bound services:
//   - *config.Config
//   - *config.AppConfig  (shorthand for Config.App)
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->instance('config', new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(services *container.Collection) {
	services.Add(
		container.Instance(p.Config),
		container.Instance(&p.Config.App),
	)
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the application logger. Build it with
// NewLogger so the same logger can be handed to the container itself.
//
// Bound services:
//   - logr.Logger
//   - *zap.Logger  (when Zap is set)
type LoggingServiceProvider struct {
	Logger logr.Logger
	Zap    *zap.Logger
}

func (p *LoggingServiceProvider) Register(services *container.Collection) {
	services.Add(container.Instance(p.Logger))
	if p.Zap != nil {
		services.Add(container.Instance(p.Zap))
	}
}

func (p *LoggingServiceProvider) Boot(app container.ServiceProvider) error {
	p.Logger.V(1).Info("Logger ready")
	return nil
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider owns the prometheus registry the container and the
// /metrics endpoint share.
//
// Bound services:
//   - *prometheus.Registry
//   - prometheus.Gatherer
//   - *container.Metrics
type MetricsServiceProvider struct {
	container.BaseProvider
	Registry *prometheus.Registry
	Metrics  *container.Metrics
}

// NewMetricsProvider creates a registry carrying the Go runtime, process and
// container collectors.
func NewMetricsProvider() *MetricsServiceProvider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := container.NewMetrics()
	m.MustRegister(reg)
	return &MetricsServiceProvider{Registry: reg, Metrics: m}
}

func (p *MetricsServiceProvider) Register(services *container.Collection) {
	services.Add(
		container.Instance(p.Registry),
		container.Instance[prometheus.Gatherer](p.Registry),
		container.Instance(p.Metrics),
	)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound services:
//   - *routing.Router  (singleton)
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(services *container.Collection) {
	services.Add(container.Singleton[*routing.Router](func() *routing.Router {
		return routing.New()
	}))
}
