package app

import (
	"net/http"

	"github.com/km-arc/go-tenancy/framework/container"
	gohttp "github.com/km-arc/go-tenancy/framework/http"
	"github.com/km-arc/go-tenancy/framework/routing"
)

// GreetingProvider registers the greeting services and routes.
//
//	GET /tenants/{tenant}/greeting?name=Ada
//	GET /tenants/{tenant}/profile
//	GET /greeting?name=Ada            (tenant from the tenant header)
type GreetingProvider struct{}

func (p *GreetingProvider) Register(services *container.Collection) {
	services.Add(
		container.Singleton[Clock](newSystemClock),
		container.Singleton[*Directory](NewDirectory),
		container.Singleton[*Tenant](NewTenant).Tenanted(),
		container.Singleton[*Visits](NewVisits).Tenanted(),
		container.Scoped[*Audit](NewAudit).Tenanted(),
		container.FactoryOf[Greeter](container.LifetimeScoped, newGreeter).Tenanted(),
	)
}

func (p *GreetingProvider) Boot(app container.ServiceProvider) error {
	router, err := container.Get[*routing.Router](app)
	if err != nil {
		return err
	}

	router.Prefix("/tenants/{tenant}", func(t *routing.Router) {
		t.Middleware(routing.RequireTenant)
		t.Get("/greeting", greet)
		t.Get("/profile", profile)
	})
	router.Group(func(g *routing.Router) {
		g.Middleware(routing.RequireTenant)
		g.Get("/greeting", greet)
	})
	return nil
}

// ── Handlers ──────────────────────────────────────────────────────────────────

func greet(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)

	greeter, err := routing.Service[Greeter](r)
	if err != nil {
		res.ServiceError(err)
		return
	}
	visits, err := routing.Service[*Visits](r)
	if err != nil {
		res.ServiceError(err)
		return
	}
	audit, err := routing.Service[*Audit](r)
	if err != nil {
		res.ServiceError(err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "world"
	}
	message := greeter.Greet(name)
	audit.Record("greeted %s", name)

	res.Success(map[string]any{
		"tenant":   routing.TenantKey(r),
		"greeting": message,
		"visits":   visits.Inc(),
	})
}

func profile(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)
	tenant, err := routing.Service[*Tenant](r)
	if err != nil {
		res.ServiceError(err)
		return
	}
	res.Success(tenant)
}
