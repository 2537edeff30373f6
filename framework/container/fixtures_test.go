package container_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/km-arc/go-tenancy/framework/container"
)

// ── tenancy fixtures ──────────────────────────────────────────────────────────

var lastID atomic.Uint32

type commonService struct{ ID uint32 }

func newCommonService() *commonService { return &commonService{ID: lastID.Add(1)} }

type tenantService struct {
	ID     uint32
	tenant container.TenantKeyAccessor[string]
}

func newTenantService(tenant container.TenantKeyAccessor[string]) *tenantService {
	return &tenantService{ID: lastID.Add(1), tenant: tenant}
}

func (s *tenantService) TenantKey() string { return s.tenant.TenantKey() }

type wrappingService struct {
	Service *tenantService
	Common  *commonService
}

func newWrappingService(s *tenantService, c *commonService) *wrappingService {
	return &wrappingService{Service: s, Common: c}
}

// multiTenantServices registers a shared singleton, a tenanted singleton and
// a tenanted transient wrapping both.
func multiTenantServices() *container.Collection {
	services := container.NewCollection()
	services.Add(
		container.Singleton[*commonService](newCommonService),
		container.Singleton[*tenantService](newTenantService).Tenanted(),
		container.Transient[*wrappingService](newWrappingService).Tenanted(),
	)
	return services
}

var engines = []container.EngineKind{container.EngineRuntime, container.EngineCompiled}

// ── greeters ──────────────────────────────────────────────────────────────────

type greeter interface{ Greet() string }

type english struct{ ID uint32 }
type french struct{ ID uint32 }
type german struct{ ID uint32 }

func (*english) Greet() string { return "hello" }
func (*french) Greet() string  { return "bonjour" }
func (*german) Greet() string  { return "hallo" }

func newEnglish() *english { return &english{ID: lastID.Add(1)} }
func newFrench() *french   { return &french{ID: lastID.Add(1)} }
func newGerman() *german   { return &german{ID: lastID.Add(1)} }

func greetings(gs []greeter) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Greet()
	}
	return out
}

// ── cycles ────────────────────────────────────────────────────────────────────

type cycleA struct{}
type cycleB struct{}

func newCycleA(*cycleB) *cycleA { return &cycleA{} }
func newCycleB(*cycleA) *cycleB { return &cycleB{} }

// ── diamond ───────────────────────────────────────────────────────────────────

type diamondA struct{}
type diamondB struct{ A *diamondA }
type diamondC struct{ A *diamondA }
type diamondD struct {
	B *diamondB
	C *diamondC
}

func newDiamondA() *diamondA                         { return &diamondA{} }
func newDiamondB(a *diamondA) *diamondB              { return &diamondB{A: a} }
func newDiamondC(a *diamondA) *diamondC              { return &diamondC{A: a} }
func newDiamondD(b *diamondB, c *diamondC) *diamondD { return &diamondD{B: b, C: c} }

// ── disposal ──────────────────────────────────────────────────────────────────

// disposalLog records the order in which resources are released.
type disposalLog struct {
	mu    sync.Mutex
	names []string
}

func (l *disposalLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *disposalLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

type resource struct {
	name string
	log  *disposalLog
	err  error
}

func (r *resource) Close() error {
	r.log.add(r.name)
	return r.err
}

type asyncResource struct {
	name string
	log  *disposalLog
}

func (r *asyncResource) Shutdown(context.Context) error {
	r.log.add(r.name)
	return nil
}

var errCloseFailed = errors.New("close failed")

// ── generics ──────────────────────────────────────────────────────────────────

type Repository[T any] interface{ Kind() string }

type memoryRepository[T any] struct{}

func newMemoryRepository[T any]() *memoryRepository[T] { return &memoryRepository[T]{} }

func (*memoryRepository[T]) Kind() string { return "memory:" + reflect.TypeFor[T]().Name() }

type specialUserRepository struct{}

func (*specialUserRepository) Kind() string { return "special:user" }

type user struct{}
type order struct{}
