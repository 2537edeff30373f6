package container

import (
	"reflect"
	"sync"
)

var scopeFactoryType = reflect.TypeFor[ScopeFactory]()

// callSiteValidator rejects singletons that capture scoped services and
// remembers which services need a non-root scope.
type callSiteValidator struct {
	// top-level service -> first scoped service found under it
	scoped sync.Map
}

// validateCallSite walks cs once. No constructor runs.
func (v *callSiteValidator) validateCallSite(cs *CallSite) error {
	scoped, err := v.visit(cs, nil)
	if err != nil {
		return err
	}
	if scoped != nil {
		v.scoped.Store(cs.service, *scoped)
	}
	return nil
}

// validateResolution fails requests made against the root scope for
// services that depend on scoped ones.
func (v *callSiteValidator) validateResolution(id ServiceIdentifier, scope, root *engineScope) error {
	if scope != root {
		return nil
	}
	raw, ok := v.scoped.Load(id)
	if !ok {
		return nil
	}
	scoped := raw.(ServiceIdentifier)
	if scoped == id {
		return newError(ErrDirectScopedResolvedFromRoot, id,
			"cannot resolve scoped service %s from the root provider", id)
	}
	e := newError(ErrScopedResolvedFromRoot, id,
		"cannot resolve %s from the root provider because it requires scoped service %s", id, scoped)
	e.Related = scoped.Type
	return e
}

// visit returns the first scoped service found in the subtree. singleton is
// the nearest enclosing root-cached call-site, if any.
func (v *callSiteValidator) visit(cs *CallSite, singleton *CallSite) (*ServiceIdentifier, error) {
	switch cs.cache.Location {
	case CacheRoot:
		return v.visitMain(cs, cs)
	case CacheScope:
		if cs.service.Type == scopeFactoryType {
			return nil, nil
		}
		if singleton != nil {
			e := newError(ErrScopedInSingleton, cs.service,
				"cannot consume scoped service %s from singleton %s", cs.service, singleton.service)
			e.Related = singleton.service.Type
			return nil, e
		}
		if _, err := v.visitMain(cs, nil); err != nil {
			return nil, err
		}
		id := cs.service
		return &id, nil
	}
	return v.visitMain(cs, singleton)
}

func (v *callSiteValidator) visitMain(cs *CallSite, singleton *CallSite) (*ServiceIdentifier, error) {
	var first *ServiceIdentifier
	for _, child := range cs.Children() {
		scoped, err := v.visit(child, singleton)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = scoped
		}
	}
	return first, nil
}
