package container

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// ── Options ───────────────────────────────────────────────────────────────────

// EngineKind selects how call-site trees are executed.
type EngineKind int

const (
	// EngineRuntime walks the call-site tree on every resolution.
	EngineRuntime EngineKind = iota
	// EngineCompiled compiles each tree into closures when first resolved.
	EngineCompiled
)

func (k EngineKind) String() string {
	if k == EngineCompiled {
		return "compiled"
	}
	return "runtime"
}

// ParseEngineKind accepts "runtime" or "compiled".
func ParseEngineKind(s string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "runtime":
		return EngineRuntime, nil
	case "compiled":
		return EngineCompiled, nil
	}
	return EngineRuntime, fmt.Errorf("container: unknown engine %q", s)
}

type options struct {
	validateScopes  bool
	validateOnBuild bool
	comparer        any
	logger          logr.Logger
	metrics         *Metrics
	engine          EngineKind
}

// Option configures Build.
type Option func(*options)

// WithValidateScopes rejects singletons that capture scoped services, and
// scoped services resolved from the root.
func WithValidateScopes(on bool) Option {
	return func(o *options) { o.validateScopes = on }
}

// WithValidateOnBuild builds the graph of every registration in Build and
// reports all failures at once.
func WithValidateOnBuild(on bool) Option {
	return func(o *options) { o.validateOnBuild = on }
}

// WithComparer sets the tenant-key equality. Its key type must match the
// container's.
func WithComparer[K any](c Comparer[K]) Option {
	return func(o *options) { o.comparer = c }
}

// WithLogger sets the logger for container events.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records container events into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEngine selects the execution strategy.
func WithEngine(kind EngineKind) Option {
	return func(o *options) { o.engine = kind }
}

// ── engine ────────────────────────────────────────────────────────────────────

type serviceAccessor func(ctx resolveContext) (any, error)

type resolverStrategy interface {
	realize(cs *CallSite) serviceAccessor
}

// engine is the tenant-key independent part of a Container.
type engine struct {
	factory   *callSiteFactory
	root      *engineScope
	runtime   *runtimeResolver
	strategy  resolverStrategy
	validator *callSiteValidator
	realized  sync.Map // ServiceIdentifier -> serviceAccessor
	log       logr.Logger
	metrics   *Metrics
	disposed  atomic.Bool
}

func newEngine(lookup *descriptorLookup, activator Activator, o *options) *engine {
	e := &engine{
		factory: newCallSiteFactory(lookup, activator),
		log:     o.logger,
		metrics: o.metrics,
	}
	e.root = newEngineScope(e, true)
	t := tiers{root: e.root, metrics: o.metrics}
	e.runtime = &runtimeResolver{tiers: t}
	e.strategy = e.runtime
	if o.engine == EngineCompiled {
		e.strategy = &compiledResolver{tiers: t}
	}
	if o.validateScopes {
		e.validator = &callSiteValidator{}
	}
	return e
}

func (e *engine) getService(id ServiceIdentifier, scope *engineScope, ctx resolveContext) (any, error) {
	if e.disposed.Load() {
		return nil, newError(ErrObjectDisposed, id, "cannot resolve %s from a disposed container", id)
	}
	accessor, err := e.accessor(id)
	if err == nil && e.validator != nil {
		err = e.validator.validateResolution(id, scope, e.root)
	}
	if err != nil {
		e.fail(id, err)
		return nil, err
	}
	e.log.V(2).Info("Service resolved", "service", id.String(), "scope", scope.id)
	e.metrics.observeResolution(id)
	ctx.scope = scope
	v, err := accessor(ctx)
	if err != nil {
		e.fail(id, err)
		return nil, err
	}
	return v, nil
}

func (e *engine) fail(id ServiceIdentifier, err error) {
	e.log.Error(err, "Service realization failed", "service", id.String())
	e.metrics.observeFailure(err)
}

// accessor returns the realized accessor for id. Failures are not cached, so
// a later request builds the graph again.
func (e *engine) accessor(id ServiceIdentifier) (serviceAccessor, error) {
	if a, ok := e.realized.Load(id); ok {
		return a.(serviceAccessor), nil
	}
	a, err := e.createAccessor(id)
	if err != nil {
		return nil, err
	}
	actual, _ := e.realized.LoadOrStore(id, a)
	return actual.(serviceAccessor), nil
}

func (e *engine) createAccessor(id ServiceIdentifier) (serviceAccessor, error) {
	cs, err := e.factory.getCallSite(id, newCallSiteChain())
	if err != nil {
		return nil, err
	}
	if cs == nil {
		return func(resolveContext) (any, error) { return nil, nil }, nil
	}
	e.metrics.observeCallSiteBuilt()
	if l := e.log.V(1); l.Enabled() {
		l.Info("Call site built", "service", id.String(), "callSite", FormatCallSite(cs))
	}
	if e.validator != nil {
		if err := e.validator.validateCallSite(cs); err != nil {
			return nil, err
		}
	}
	if cs.cache.Location == CacheRoot {
		v, err := e.runtime.resolve(cs, resolveContext{scope: e.root})
		if err != nil {
			return nil, err
		}
		return func(resolveContext) (any, error) { return v, nil }, nil
	}
	return e.strategy.realize(cs), nil
}

func (e *engine) createScope() (*engineScope, error) {
	if e.disposed.Load() {
		return nil, &Error{Kind: ErrObjectDisposed, Detail: "cannot create a scope from a disposed container"}
	}
	s := newEngineScope(e, false)
	e.log.V(2).Info("Scope created", "scope", s.id)
	return s, nil
}

func (e *engine) onScopeDisposed(s *engineScope, disposables int, elapsed time.Duration) {
	e.log.V(1).Info("Scope disposed", "scope", s.id, "root", s.root,
		"resolved", s.resolvedCount(), "disposables", disposables, "duration", elapsed)
	e.metrics.observeScopeDisposed(elapsed)
}

func (e *engine) validateDescriptor(d *ServiceDescriptor, tenant *TenantIdentifier) error {
	if d.OpenService != nil {
		return nil
	}
	if d.IsShared() {
		tenant = nil
	}
	cs, err := e.factory.getDescriptorCallSite(d, tenant, newCallSiteChain())
	if err == nil && cs != nil && e.validator != nil {
		err = e.validator.validateCallSite(cs)
	}
	if err != nil {
		return fmt.Errorf("error while validating the service descriptor '%s': %w", d, err)
	}
	return nil
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the multi-tenant service provider. K is the tenant key type.
//
//	services := container.NewCollection()
//	services.Add(
//	    container.Singleton[Clock](NewSystemClock),
//	    container.Singleton[*Settings](NewSettings).Tenanted(),
//	)
//	c, err := container.Build[string](services, container.WithValidateScopes(true))
//	settings, err := container.Resolve[*Settings](c, "acme")
type Container[K comparable] struct {
	engine   *engine
	tenants  *tenantKeys[K]
	services *Collection
}

// Build validates the registrations and creates the container.
func Build[K comparable](services *Collection, opts ...Option) (*Container[K], error) {
	if err := services.Err(); err != nil {
		return nil, err
	}
	o := &options{logger: logr.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	var comparer Comparer[K]
	if o.comparer != nil {
		c, ok := o.comparer.(Comparer[K])
		if !ok {
			return nil, fmt.Errorf("container: comparer %T does not compare %s keys", o.comparer, reflect.TypeFor[K]())
		}
		comparer = c
	}

	lookup, err := newDescriptorLookup(services.descriptors)
	if err != nil {
		return nil, err
	}
	e := newEngine(lookup, services, o)
	c := &Container[K]{engine: e, tenants: newTenantKeys(comparer), services: services}
	c.registerOverrides(services.overrides)

	if o.validateOnBuild {
		var errs []error
		for _, d := range services.descriptors {
			if err := e.validateDescriptor(d, c.tenants.validation); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return nil, &BuildError{Errors: errs}
		}
	}
	e.log.V(1).Info("Container built", "descriptors", len(services.descriptors),
		"engine", o.engine.String(), "validateScopes", o.validateScopes)
	return c, nil
}

// registerOverrides installs user overrides, then the built-in services.
func (c *Container[K]) registerOverrides(user map[reflect.Type]OverrideFunc) {
	f := c.engine.factory
	for t, fn := range user {
		f.override(t, func(id ServiceIdentifier) (*CallSite, error) {
			v, ok := fn(id)
			if !ok {
				return nil, nil
			}
			return newConstantCallSite(id, v)
		})
	}
	f.override(reflect.TypeFor[ServiceProvider](), func(id ServiceIdentifier) (*CallSite, error) {
		return newServiceProviderCallSite(id), nil
	})
	f.override(scopeFactoryType, func(id ServiceIdentifier) (*CallSite, error) {
		return newConstantCallSite(id, &scopeFactory{engine: c.engine, tenant: id.Tenant})
	})
	f.override(reflect.TypeFor[ServiceProviderIsService](), func(id ServiceIdentifier) (*CallSite, error) {
		return newConstantCallSite(id, &isServiceQuery{factory: f, tenant: id.Tenant})
	})
	f.override(reflect.TypeFor[TenantKeyAccessor[K]](), func(id ServiceIdentifier) (*CallSite, error) {
		if id.Tenant == nil {
			return nil, nil
		}
		return newConstantCallSite(id, id.Tenant.accessor)
	})
}

// GetService resolves serviceType for tenant key from the root scope. It
// returns nil without error when serviceType is not a service.
func (c *Container[K]) GetService(key K, serviceType reflect.Type) (any, error) {
	return c.engine.getService(c.identifier(key, serviceType), c.engine.root, resolveContext{})
}

// GetSharedService resolves serviceType without a tenant.
func (c *Container[K]) GetSharedService(serviceType reflect.Type) (any, error) {
	return c.engine.getService(SharedIdentifier(serviceType), c.engine.root, resolveContext{})
}

// IsService reports whether serviceType resolves for tenant key.
func (c *Container[K]) IsService(key K, serviceType reflect.Type) bool {
	return c.engine.factory.isService(c.identifier(key, serviceType))
}

// IsSharedService reports whether serviceType resolves without a tenant.
func (c *Container[K]) IsSharedService(serviceType reflect.Type) bool {
	return c.engine.factory.isService(SharedIdentifier(serviceType))
}

// Tenant returns a root-scope provider bound to tenant key.
func (c *Container[K]) Tenant(key K) ServiceProvider {
	return &scopeProvider{scope: c.engine.root, tenant: c.tenants.get(key)}
}

// Shared returns a root-scope provider for shared requests.
func (c *Container[K]) Shared() ServiceProvider {
	return &scopeProvider{scope: c.engine.root}
}

// CreateScope starts a new unit of work. Scopes are siblings under the root.
func (c *Container[K]) CreateScope() (*Scope[K], error) {
	s, err := c.engine.createScope()
	if err != nil {
		return nil, err
	}
	return &Scope[K]{scope: s, tenants: c.tenants}, nil
}

// CallSite builds (or returns the cached) call-site graph of a shared
// request, without resolving it.
func (c *Container[K]) CallSite(serviceType reflect.Type) (*CallSite, error) {
	return c.engine.factory.getCallSite(SharedIdentifier(serviceType), newCallSiteChain())
}

// TenantCallSite is CallSite for a tenant request.
func (c *Container[K]) TenantCallSite(key K, serviceType reflect.Type) (*CallSite, error) {
	return c.engine.factory.getCallSite(c.identifier(key, serviceType), newCallSiteChain())
}

// Registration is a descriptor with the slot it was assigned.
type Registration struct {
	Descriptor *ServiceDescriptor
	Slot       Slot
}

// Registrations lists every descriptor in registration order.
func (c *Container[K]) Registrations() []Registration {
	bucket := c.engine.factory.lookup.tenanted
	out := make([]Registration, 0, len(bucket.ordered))
	for _, e := range bucket.ordered {
		out = append(out, Registration{Descriptor: e.descriptor, Slot: e.slot})
	}
	return out
}

// ServiceType finds a registered, non-generic service type by its printed
// name, e.g. "*app.Greeter" or "app.Clock".
func (c *Container[K]) ServiceType(name string) (reflect.Type, bool) {
	for _, e := range c.engine.factory.lookup.tenanted.ordered {
		if t := e.descriptor.ServiceType; t != nil && t.String() == name {
			return t, true
		}
	}
	return nil, false
}

// Tenants is the number of distinct tenant keys seen so far.
func (c *Container[K]) Tenants() int { return c.tenants.len() }

// Close disposes the root scope, releasing every captured singleton.
func (c *Container[K]) Close() error { return c.engine.root.Close() }

// Shutdown is Close honoring asynchronous disposal.
func (c *Container[K]) Shutdown(ctx context.Context) error { return c.engine.root.Shutdown(ctx) }

func (c *Container[K]) identifier(key K, serviceType reflect.Type) ServiceIdentifier {
	return ServiceIdentifier{Type: serviceType, Tenant: c.tenants.get(key)}
}

// ── Scope ─────────────────────────────────────────────────────────────────────

// Scope is a unit of work with its own scoped values and disposables.
type Scope[K comparable] struct {
	scope   *engineScope
	tenants *tenantKeys[K]
}

// ID identifies the scope in logs.
func (s *Scope[K]) ID() uuid.UUID { return s.scope.id }

// GetService resolves serviceType for tenant key within the scope.
func (s *Scope[K]) GetService(key K, serviceType reflect.Type) (any, error) {
	return s.scope.getService(ServiceIdentifier{Type: serviceType, Tenant: s.tenants.get(key)}, resolveContext{})
}

// GetSharedService resolves serviceType without a tenant within the scope.
func (s *Scope[K]) GetSharedService(serviceType reflect.Type) (any, error) {
	return s.scope.getService(SharedIdentifier(serviceType), resolveContext{})
}

// Tenant returns a provider resolving within the scope for tenant key.
func (s *Scope[K]) Tenant(key K) ServiceProvider {
	return &scopeProvider{scope: s.scope, tenant: s.tenants.get(key)}
}

// Shared returns a provider resolving shared requests within the scope.
func (s *Scope[K]) Shared() ServiceProvider {
	return &scopeProvider{scope: s.scope}
}

// Close disposes the captured values, newest first. Closing twice is a no-op.
func (s *Scope[K]) Close() error { return s.scope.Close() }

// Shutdown is Close honoring asynchronous disposal.
func (s *Scope[K]) Shutdown(ctx context.Context) error { return s.scope.Shutdown(ctx) }

// ── Generic helpers ───────────────────────────────────────────────────────────

// TenantResolver is implemented by *Container[K] and *Scope[K].
type TenantResolver[K comparable] interface {
	GetService(key K, serviceType reflect.Type) (any, error)
}

// Resolve resolves T for tenant key.
//
//	// Laravel: app(Settings::class)
//	settings, err := container.Resolve[*Settings](c, "acme")
func Resolve[T any, K comparable](r TenantResolver[K], key K) (T, error) {
	t := reflect.TypeFor[T]()
	v, err := r.GetService(key, t)
	return cast[T](t, v, err)
}

// MustResolve is Resolve that panics on failure.
func MustResolve[T any, K comparable](r TenantResolver[K], key K) T {
	v, err := Resolve[T](r, key)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveAll resolves every registration of T for tenant key, in
// registration order.
func ResolveAll[T any, K comparable](r TenantResolver[K], key K) ([]T, error) {
	return Resolve[[]T](r, key)
}

// SharedResolver is implemented by *Container[K] and *Scope[K].
type SharedResolver interface {
	GetSharedService(serviceType reflect.Type) (any, error)
}

// ResolveShared resolves T with a shared request.
func ResolveShared[T any](r SharedResolver) (T, error) {
	t := reflect.TypeFor[T]()
	v, err := r.GetSharedService(t)
	return cast[T](t, v, err)
}

// Get resolves T from sp, typically inside a factory.
//
//	container.FactoryOf[*Report](container.LifetimeScoped, func(sp container.ServiceProvider) (*Report, error) {
//	    clock, err := container.Get[Clock](sp)
//	    ...
//	})
func Get[T any](sp ServiceProvider) (T, error) {
	t := reflect.TypeFor[T]()
	v, err := sp.GetService(t)
	return cast[T](t, v, err)
}

// MustGet is Get that panics on failure.
func MustGet[T any](sp ServiceProvider) T {
	v, err := Get[T](sp)
	if err != nil {
		panic(err)
	}
	return v
}

// GetAll resolves every registration of T, in registration order.
func GetAll[T any](sp ServiceProvider) ([]T, error) {
	return Get[[]T](sp)
}

func cast[T any](t reflect.Type, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		if t.Kind() == reflect.Slice {
			return zero, nil
		}
		return zero, newError(ErrServiceNotRegistered, SharedIdentifier(t), "no service registered for %s", typeName(t))
	}
	out, ok := v.(T)
	if !ok {
		return zero, newError(ErrConstantTypeMismatch, SharedIdentifier(t), "resolved %T is not a %s", v, typeName(t))
	}
	return out, nil
}
