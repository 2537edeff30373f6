package container

import "reflect"

// OverrideFunc decides the value of a service per request. Returning false
// lets normal registration lookup proceed.
type OverrideFunc func(id ServiceIdentifier) (any, bool)

// OverrideBuilder implements the fluent override API. Overrides are consulted
// before any registration of the same type, for shared and tenant requests
// alike, and their result is treated as a constant.
//
//	// Laravel: $app->when(Mailer::class)->needs('$from')->give(...)
//	services.Override(reflect.TypeFor[Region]()).Give(func(id container.ServiceIdentifier) (any, bool) {
//	    if id.Tenant == nil {
//	        return nil, false
//	    }
//	    return regionFor(id.Tenant.Key()), true
//	})
type OverrideBuilder struct {
	collection  *Collection
	serviceType reflect.Type
}

// Override starts an override for serviceType.
func (c *Collection) Override(serviceType reflect.Type) *OverrideBuilder {
	return &OverrideBuilder{collection: c, serviceType: serviceType}
}

// Give installs fn, replacing any previous override for the type.
func (b *OverrideBuilder) Give(fn OverrideFunc) {
	b.collection.overrides[b.serviceType] = fn
}

// GiveValue is shorthand for an override that always yields value.
//
//	services.Override(reflect.TypeFor[*time.Location]()).GiveValue(time.UTC)
func (b *OverrideBuilder) GiveValue(value any) {
	b.Give(func(ServiceIdentifier) (any, bool) { return value, true })
}

// GiveTenant is shorthand for an override that only answers tenant requests.
func (b *OverrideBuilder) GiveTenant(fn func(tenant *TenantIdentifier) any) {
	b.Give(func(id ServiceIdentifier) (any, bool) {
		if id.Tenant == nil {
			return nil, false
		}
		return fn(id.Tenant), true
	})
}
