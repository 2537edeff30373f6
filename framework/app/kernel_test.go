package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-tenancy/framework/app"
	"github.com/km-arc/go-tenancy/framework/config"
	"github.com/km-arc/go-tenancy/framework/container"
	"github.com/km-arc/go-tenancy/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	cfg := config.Load("testdata/none.env")
	cfg.App.Env = "testing"
	cfg.App.Port = "0"
	cfg.Log.Level = "error"
	return cfg
}

type echoTenant struct {
	key string
}

// tenantProvider adds a tenanted service and a route reading it.
type tenantProvider struct {
	booted bool
}

func (p *tenantProvider) Register(services *container.Collection) {
	services.Add(container.Scoped[*echoTenant](func(k container.TenantKeyAccessor[string]) *echoTenant {
		return &echoTenant{key: k.TenantKey()}
	}).Tenanted())
}

func (p *tenantProvider) Boot(sp container.ServiceProvider) error {
	router, err := container.Get[*routing.Router](sp)
	if err != nil {
		return err
	}
	router.Get("/tenants/{tenant}/echo", func(w http.ResponseWriter, r *http.Request) {
		e, err := routing.Service[*echoTenant](r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(e.key))
	})
	p.booted = true
	return nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

// ── Build ────────────────────────────────────────────────────────────────────

func TestApplication_BuildBootsProviders(t *testing.T) {
	a, err := app.NewWithConfig(testConfig())
	require.NoError(t, err)
	p := &tenantProvider{}
	require.NoError(t, a.Register(p))
	assert.Nil(t, a.Container())

	c, err := a.Build()
	require.NoError(t, err)
	assert.True(t, p.booted)
	assert.True(t, a.Providers.Booted())
	assert.Same(t, c, a.Container())

	again, err := a.Build()
	require.NoError(t, err)
	assert.Same(t, c, again)

	assert.ErrorIs(t, a.Register(&tenantProvider{}), container.ErrProvidersBooted)
	require.NoError(t, a.Close(context.Background()))
}

func TestApplication_FrameworkServices(t *testing.T) {
	cfg := testConfig()
	a, err := app.NewWithConfig(cfg)
	require.NoError(t, err)
	c, err := a.Build()
	require.NoError(t, err)
	defer a.Close(context.Background())

	got, err := container.ResolveShared[*config.Config](c)
	require.NoError(t, err)
	assert.Same(t, cfg, got)

	router, err := a.Router()
	require.NoError(t, err)
	assert.Same(t, router, container.MustResolve[*routing.Router](c, "acme"))
}

func TestApplication_InvalidEngine(t *testing.T) {
	cfg := testConfig()
	cfg.Container.Engine = "jit"
	a, err := app.NewWithConfig(cfg)
	require.NoError(t, err)

	_, err = a.Build()
	assert.ErrorContains(t, err, "CONTAINER_ENGINE")
	_, err = a.Router()
	assert.Error(t, err)
}

func TestApplication_InvalidLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Level = "loud"
	_, err := app.NewWithConfig(cfg)
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

// ── HTTP ─────────────────────────────────────────────────────────────────────

func TestApplication_RoutesAreTenantAware(t *testing.T) {
	a, err := app.NewWithConfig(testConfig())
	require.NoError(t, err)
	require.NoError(t, a.Register(&tenantProvider{}))
	router, err := a.Router()
	require.NoError(t, err)
	defer a.Close(context.Background())

	rr := get(t, router, "/tenants/acme/echo")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "acme", rr.Body.String())

	assert.Equal(t, http.StatusOK, get(t, router, "/metrics").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/_container/services").Code)
}

func TestApplication_RunStopsWithContext(t *testing.T) {
	a, err := app.NewWithConfig(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))

	_, err = container.ResolveShared[*routing.Router](a.Container())
	assert.ErrorIs(t, err, container.ErrObjectDisposed, "Run disposes the container on exit")
}

// ── Environment ──────────────────────────────────────────────────────────────

func TestApplication_Environment(t *testing.T) {
	a, err := app.NewWithConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, "testing", a.Environment())
	assert.True(t, a.IsTesting())
	assert.False(t, a.IsLocal())
	assert.False(t, a.IsProduction())
}
