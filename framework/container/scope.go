package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ServiceProvider resolves services. Values given to factories and injected
// into constructors are bound to the tenant they are built for.
type ServiceProvider interface {
	// GetService returns nil without error when serviceType is not a service.
	GetService(serviceType reflect.Type) (any, error)
}

// ServiceProviderIsService answers whether a type can be resolved, without
// building it.
type ServiceProviderIsService interface {
	IsService(serviceType reflect.Type) bool
}

// ServiceScope is a scope handed out by a ScopeFactory.
type ServiceScope interface {
	ServiceProvider
	io.Closer
	Shutdowner
}

// ScopeFactory creates scopes. It is always resolvable, including from
// singletons.
type ScopeFactory interface {
	CreateScope() (ServiceScope, error)
}

// Shutdowner is implemented by values that release resources and may block
// doing so. Scopes prefer it over io.Closer when shut down with a context.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ── engine scope ──────────────────────────────────────────────────────────────

// engineScope owns the scoped values and disposables of one unit of work.
// mu guards resolved, disposables and the disposed transition.
type engineScope struct {
	id     uuid.UUID
	engine *engine
	root   bool

	mu          sync.Mutex
	resolved    map[cacheKey]any
	disposables []any
	disposed    atomic.Bool
}

func newEngineScope(e *engine, root bool) *engineScope {
	return &engineScope{
		id:       uuid.New(),
		engine:   e,
		root:     root,
		resolved: make(map[cacheKey]any),
	}
}

func (s *engineScope) getService(id ServiceIdentifier, ctx resolveContext) (any, error) {
	if s.disposed.Load() {
		return nil, newError(ErrObjectDisposed, id, "cannot resolve %s from a disposed scope", id)
	}
	return s.engine.getService(id, s, ctx)
}

// captureDisposable records v for disposal when the scope ends.
func (s *engineScope) captureDisposable(v any) (any, error) {
	if !s.owns(v) {
		return v, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureLocked(v)
}

// captureLocked is captureDisposable for callers holding mu.
func (s *engineScope) captureLocked(v any) (any, error) {
	if !s.owns(v) {
		return v, nil
	}
	if s.disposed.Load() {
		err := disposeNow(v)
		return nil, &Error{
			Kind:   ErrObjectDisposed,
			Detail: fmt.Sprintf("scope %s was disposed while resolving a %T", s.id, v),
			Err:    err,
		}
	}
	s.disposables = append(s.disposables, v)
	return v, nil
}

// owns reports whether v is something the scope must dispose.
func (s *engineScope) owns(v any) bool {
	if o, ok := v.(interface{ owner() *engineScope }); ok && o.owner() == s {
		return false
	}
	switch v.(type) {
	case io.Closer, Shutdowner:
		return true
	}
	return false
}

// beginDispose flips the disposed flag and detaches the disposables in one
// step. It returns false when the scope was already disposed.
func (s *engineScope) beginDispose() ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed.Load() {
		return nil, false
	}
	s.disposed.Store(true)
	if s.root {
		s.engine.disposed.Store(true)
	}
	list := s.disposables
	s.disposables = nil
	return list, true
}

// Close disposes captured values synchronously, newest first. Values that can
// only be shut down asynchronously are reported as ErrAsyncDisposableOnly.
func (s *engineScope) Close() error {
	list, ok := s.beginDispose()
	if !ok {
		return nil
	}
	start := time.Now()
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		switch d := list[i].(type) {
		case io.Closer:
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, &Error{
				Kind:   ErrAsyncDisposableOnly,
				Detail: fmt.Sprintf("%T only implements Shutdown; use the scope's Shutdown instead of Close", d),
			})
		}
	}
	s.engine.onScopeDisposed(s, len(list), time.Since(start))
	return errors.Join(errs...)
}

// Shutdown disposes captured values newest first, preferring Shutdown over
// Close on each value.
func (s *engineScope) Shutdown(ctx context.Context) error {
	list, ok := s.beginDispose()
	if !ok {
		return nil
	}
	start := time.Now()
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		var err error
		switch d := list[i].(type) {
		case Shutdowner:
			err = d.Shutdown(ctx)
		case io.Closer:
			err = d.Close()
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.engine.onScopeDisposed(s, len(list), time.Since(start))
	return errors.Join(errs...)
}

func (s *engineScope) resolvedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved)
}

func disposeNow(v any) error {
	switch d := v.(type) {
	case io.Closer:
		return d.Close()
	case Shutdowner:
		return d.Shutdown(context.Background())
	}
	return nil
}

// ── tenant-bound views ────────────────────────────────────────────────────────

// scopeProvider resolves from a scope on behalf of one tenant.
type scopeProvider struct {
	scope  *engineScope
	tenant *TenantIdentifier
	locks  lockFlags
	frame  *resolveFrame
}

func (p *scopeProvider) owner() *engineScope { return p.scope }

func (p *scopeProvider) GetService(serviceType reflect.Type) (any, error) {
	ctx := resolveContext{}
	if p.frame != nil && !p.frame.done.Load() {
		ctx.locks, ctx.frame = p.locks, p.frame
	}
	return p.scope.getService(ServiceIdentifier{Type: serviceType, Tenant: p.tenant}, ctx)
}

func (p *scopeProvider) IsService(serviceType reflect.Type) bool {
	return p.scope.engine.factory.isService(ServiceIdentifier{Type: serviceType, Tenant: p.tenant})
}

// scopeFactory creates scopes bound to the tenant that asked for the factory.
type scopeFactory struct {
	engine *engine
	tenant *TenantIdentifier
}

func (f *scopeFactory) CreateScope() (ServiceScope, error) {
	s, err := f.engine.createScope()
	if err != nil {
		return nil, err
	}
	return &boundScope{scopeProvider: scopeProvider{scope: s, tenant: f.tenant}}, nil
}

type boundScope struct {
	scopeProvider
}

func (b *boundScope) Close() error                       { return b.scope.Close() }
func (b *boundScope) Shutdown(ctx context.Context) error { return b.scope.Shutdown(ctx) }

// isServiceQuery is the tenant-bound ServiceProviderIsService built-in.
type isServiceQuery struct {
	factory *callSiteFactory
	tenant  *TenantIdentifier
}

func (q *isServiceQuery) IsService(serviceType reflect.Type) bool {
	return q.factory.isService(ServiceIdentifier{Type: serviceType, Tenant: q.tenant})
}
