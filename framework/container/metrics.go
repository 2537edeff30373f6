package container

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "tenancy"
	metricsSubsystem = "container"
)

// Metrics holds the container's prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	resolutions      *prometheus.CounterVec
	constructions    *prometheus.CounterVec
	failures         *prometheus.CounterVec
	callSitesBuilt   prometheus.Counter
	scopesDisposed   prometheus.Counter
	disposalDuration prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "resolutions_total",
				Help:      "Number of service resolutions by tenancy of the request",
			},
			[]string{"tenancy"},
		),
		constructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "constructions_total",
				Help:      "Number of constructor and factory invocations",
			},
			[]string{"kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "failures_total",
				Help:      "Number of failed resolutions by error kind",
			},
			[]string{"kind"},
		),
		callSitesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "callsites_built_total",
			Help:      "Number of top-level call-site graphs built",
		}),
		scopesDisposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "scopes_disposed_total",
			Help:      "Number of disposed scopes",
		}),
		disposalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "disposal_duration_seconds",
			Help:      "Time spent disposing the values captured by a scope",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.resolutions,
		m.constructions,
		m.failures,
		m.callSitesBuilt,
		m.scopesDisposed,
		m.disposalDuration,
	)
}

func (m *Metrics) observeResolution(id ServiceIdentifier) {
	if m == nil {
		return
	}
	tenancy := Shared
	if id.IsTenanted() {
		tenancy = Tenanted
	}
	m.resolutions.WithLabelValues(tenancy.String()).Inc()
}

func (m *Metrics) observeConstruction(kind CallSiteKind) {
	if m == nil {
		return
	}
	m.constructions.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeFailure(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(errorKind(err)).Inc()
}

func (m *Metrics) observeCallSiteBuilt() {
	if m == nil {
		return
	}
	m.callSitesBuilt.Inc()
}

func (m *Metrics) observeScopeDisposed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scopesDisposed.Inc()
	m.disposalDuration.Observe(elapsed.Seconds())
}
