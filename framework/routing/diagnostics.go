package routing

import (
	"net/http"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-tenancy/framework/container"
	gohttp "github.com/km-arc/go-tenancy/framework/http"
)

// Inspector exposes a container's registrations and call-site graphs.
// *container.Container[string] implements it.
type Inspector interface {
	Registrations() []container.Registration
	ServiceType(name string) (reflect.Type, bool)
	CallSite(serviceType reflect.Type) (*container.CallSite, error)
	TenantCallSite(key string, serviceType reflect.Type) (*container.CallSite, error)
	Tenants() int
}

// ServiceInfo is the JSON view of one registration.
type ServiceInfo struct {
	Service  string `json:"service"`
	Lifetime string `json:"lifetime"`
	Tenancy  string `json:"tenancy"`
	Source   string `json:"source"`
	Slot     int    `json:"slot"`
}

// Describe lists the registrations of inspector in registration order.
func Describe(inspector Inspector) []ServiceInfo {
	regs := inspector.Registrations()
	out := make([]ServiceInfo, 0, len(regs))
	for _, reg := range regs {
		d := reg.Descriptor
		name := "<generic>"
		if d.ServiceType != nil {
			name = d.ServiceType.String()
		} else if d.OpenService != nil {
			name = d.OpenService.String()
		}
		out = append(out, ServiceInfo{
			Service:  name,
			Lifetime: d.Lifetime.String(),
			Tenancy:  d.Tenancy.String(),
			Source:   d.Source(),
			Slot:     int(reg.Slot),
		})
	}
	return out
}

// Diagnostics mounts the container and metrics endpoints:
//
//	GET /metrics                              prometheus exposition of gatherer
//	GET /_container/services                  registrations
//	GET /_container/graph?service=&tenant=    call-site graph (format=yaml for YAML)
func Diagnostics(r *Router, inspector Inspector, gatherer prometheus.Gatherer) {
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Prefix("/_container", func(d *Router) {
		d.Get("/services", func(w http.ResponseWriter, req *http.Request) {
			gohttp.NewResponse(w).Success(map[string]any{
				"services": Describe(inspector),
				"tenants":  inspector.Tenants(),
			})
		})

		d.Get("/graph", func(w http.ResponseWriter, req *http.Request) {
			res := gohttp.NewResponse(w)
			q := req.URL.Query()
			t, ok := inspector.ServiceType(q.Get("service"))
			if !ok {
				res.NotFound("Unknown service " + q.Get("service") + ".")
				return
			}

			var (
				cs  *container.CallSite
				err error
			)
			if tenant := q.Get("tenant"); tenant != "" {
				cs, err = inspector.TenantCallSite(tenant, t)
			} else {
				cs, err = inspector.CallSite(t)
			}
			if err != nil {
				res.ServiceError(err)
				return
			}
			if cs == nil {
				res.NotFound("Service is not visible from this partition.")
				return
			}

			record := container.DescribeCallSite(cs)
			if q.Get("format") == "yaml" {
				res.YAML(http.StatusOK, record)
				return
			}
			res.Success(record)
		})
	})
}
