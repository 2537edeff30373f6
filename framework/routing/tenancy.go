package routing

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/km-arc/go-tenancy/framework/container"
)

// ErrNoRequestScope is returned when request services are asked for outside
// the Tenancy middleware.
var ErrNoRequestScope = errors.New("routing: request has no service scope, is the Tenancy middleware installed?")

// TenantProviders hands out providers bound to a tenant or to the shared
// partition. *container.Container[string] implements it.
type TenantProviders interface {
	Tenant(key string) container.ServiceProvider
	Shared() container.ServiceProvider
}

type tenancyOptions struct {
	header string
	param  string
	log    logr.Logger
}

// TenancyOption configures the Tenancy middleware.
type TenancyOption func(*tenancyOptions)

// WithTenantHeader names the header carrying the tenant key. Default "X-Tenant".
func WithTenantHeader(name string) TenancyOption {
	return func(o *tenancyOptions) { o.header = name }
}

// WithTenantParam names the URL parameter carrying the tenant key when the
// header is absent. Default "tenant".
func WithTenantParam(name string) TenancyOption {
	return func(o *tenancyOptions) { o.param = name }
}

// WithTenancyLogger sets the logger used for scope disposal failures.
func WithTenancyLogger(l logr.Logger) TenancyOption {
	return func(o *tenancyOptions) { o.log = l }
}

type requestScopeKey struct{}

// requestScope opens the request's service scope on first use. The tenant is
// read at that point so URL parameters matched by sub-routers are visible.
type requestScope struct {
	tenants TenantProviders
	opts    *tenancyOptions

	once   sync.Once
	tenant string
	scope  container.ServiceScope
	err    error
}

func (rs *requestScope) open(r *http.Request) (container.ServiceScope, error) {
	rs.once.Do(func() {
		rs.tenant = tenantKey(r, rs.opts)
		provider := rs.tenants.Shared()
		if rs.tenant != "" {
			provider = rs.tenants.Tenant(rs.tenant)
		}
		factory, err := container.Get[container.ScopeFactory](provider)
		if err != nil {
			rs.err = err
			return
		}
		rs.scope, rs.err = factory.CreateScope()
	})
	return rs.scope, rs.err
}

// close disposes the scope if one was opened. Later opens see no scope.
func (rs *requestScope) close() error {
	rs.once.Do(func() { rs.err = ErrNoRequestScope })
	if rs.scope == nil {
		return nil
	}
	return rs.scope.Close()
}

// Tenancy gives every request its own service scope, bound to the tenant
// named by the tenant header or URL parameter (shared when neither is set).
// The scope is created lazily and closed once the handler returns.
//
//	router.Middleware(routing.Tenancy(c, routing.WithTenantHeader("X-Org")))
//	router.Get("/tenants/{tenant}/greeting", func(w http.ResponseWriter, r *http.Request) {
//	    g, err := routing.Service[Greeter](r)
//	    ...
//	})
func Tenancy(tenants TenantProviders, opts ...TenancyOption) func(http.Handler) http.Handler {
	o := &tenancyOptions{header: "X-Tenant", param: "tenant", log: logr.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs := &requestScope{tenants: tenants, opts: o}
			defer func() {
				if err := rs.close(); err != nil {
					o.log.Error(err, "Request scope disposal failed", "path", r.URL.Path, "tenant", rs.tenant)
				}
			}()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestScopeKey{}, rs)))
		})
	}
}

// RequireTenant rejects requests that carry no tenant key with 400. It must
// run inside Tenancy.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TenantKey(r) == "" {
			http.Error(w, "missing tenant", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TenantKey returns the tenant the request is for, or "" for shared requests.
func TenantKey(r *http.Request) string {
	rs, ok := r.Context().Value(requestScopeKey{}).(*requestScope)
	if !ok {
		return ""
	}
	return tenantKey(r, rs.opts)
}

// Services returns the request's service scope, creating it on first call.
func Services(r *http.Request) (container.ServiceProvider, error) {
	rs, ok := r.Context().Value(requestScopeKey{}).(*requestScope)
	if !ok {
		return nil, ErrNoRequestScope
	}
	return rs.open(r)
}

// Service resolves T from the request's service scope.
func Service[T any](r *http.Request) (T, error) {
	sp, err := Services(r)
	if err != nil {
		var zero T
		return zero, err
	}
	return container.Get[T](sp)
}

func tenantKey(r *http.Request, o *tenancyOptions) string {
	if o.header != "" {
		if key := r.Header.Get(o.header); key != "" {
			return key
		}
	}
	if o.param != "" {
		return chi.URLParam(r, o.param)
	}
	return ""
}
