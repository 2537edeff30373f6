package container

import (
	"fmt"
	"reflect"
)

// TenantIdentifier is the interned token for one tenant key. The container
// mints exactly one per distinct key, so pointer equality is tenant equality.
type TenantIdentifier struct {
	key      any
	accessor any
	label    string
}

// Key returns the tenant key this identifier was minted for.
func (t *TenantIdentifier) Key() any { return t.key }

func (t *TenantIdentifier) String() string {
	if t == nil {
		return "<shared>"
	}
	if t.label != "" {
		return t.label
	}
	return fmt.Sprint(t.key)
}

// ServiceIdentifier names a request: a service type, and the tenant it is
// requested for (nil for a shared request).
type ServiceIdentifier struct {
	Type   reflect.Type
	Tenant *TenantIdentifier
}

// SharedIdentifier is the identifier of a tenant-less request for t.
func SharedIdentifier(t reflect.Type) ServiceIdentifier {
	return ServiceIdentifier{Type: t}
}

// IsTenanted reports whether the request carries a tenant.
func (id ServiceIdentifier) IsTenanted() bool { return id.Tenant != nil }

func (id ServiceIdentifier) shared() ServiceIdentifier {
	return ServiceIdentifier{Type: id.Type}
}

func (id ServiceIdentifier) String() string {
	name := typeName(id.Type)
	if id.Tenant == nil {
		return name
	}
	return name + "@" + id.Tenant.String()
}

// Slot tells apart registrations of the same service type. The last
// registration gets 0.
type Slot int

// cacheKey identifies a memoized value inside a scope.
type cacheKey struct {
	id   ServiceIdentifier
	slot Slot
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
