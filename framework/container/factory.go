package container

import (
	"reflect"
	"slices"
	"sync"
)

// overrideFactory answers requests for one type ahead of registrations; a
// nil call-site means no answer.
type overrideFactory func(id ServiceIdentifier) (*CallSite, error)

// callSiteFactory builds and caches the resolution graph.
type callSiteFactory struct {
	lookup    *descriptorLookup
	activator Activator
	overrides map[reflect.Type]overrideFactory

	cache sync.Map // cacheKey -> *CallSite
	locks sync.Map // ServiceIdentifier -> *sync.Mutex
}

func newCallSiteFactory(lookup *descriptorLookup, activator Activator) *callSiteFactory {
	return &callSiteFactory{
		lookup:    lookup,
		activator: activator,
		overrides: make(map[reflect.Type]overrideFactory),
	}
}

// override installs fn for t. Only called while the container is built.
func (f *callSiteFactory) override(t reflect.Type, fn overrideFactory) {
	f.overrides[t] = fn
}

// publish stores cs under key unless another builder got there first, in
// which case the earlier call-site wins.
func (f *callSiteFactory) publish(key cacheKey, cs *CallSite) *CallSite {
	actual, _ := f.cache.LoadOrStore(key, cs)
	return actual.(*CallSite)
}

func (f *callSiteFactory) cached(key cacheKey) *CallSite {
	if cs, ok := f.cache.Load(key); ok {
		return cs.(*CallSite)
	}
	return nil
}

// getCallSite returns the call-site for id, building it when needed. A nil
// call-site with a nil error means id is not a service.
func (f *callSiteFactory) getCallSite(id ServiceIdentifier, chain *callSiteChain) (*CallSite, error) {
	if cs := f.cached(cacheKey{id: id}); cs != nil {
		return cs, nil
	}
	return f.createCallSite(id, chain)
}

// getDescriptorCallSite builds the call-site of one particular registration,
// as seen from a request for tenant.
func (f *callSiteFactory) getDescriptorCallSite(d *ServiceDescriptor, tenant *TenantIdentifier, chain *callSiteChain) (*CallSite, error) {
	entry := f.lookup.bucket(tenant).byDesc[d]
	if entry == nil || d.OpenService != nil {
		return nil, nil
	}
	return f.tryCreateExact(entry, ServiceIdentifier{Type: d.ServiceType, Tenant: tenant}, chain, entry.slot)
}

func (f *callSiteFactory) lockFor(id ServiceIdentifier) *sync.Mutex {
	mu, _ := f.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (f *callSiteFactory) createCallSite(id ServiceIdentifier, chain *callSiteChain) (*CallSite, error) {
	// The cycle check runs before locking: a cycle re-enters on the same
	// goroutine and sync.Mutex is not reentrant.
	if err := chain.checkCircular(id); err != nil {
		return nil, err
	}
	mu := f.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if cs := f.cached(cacheKey{id: id}); cs != nil {
		return cs, nil
	}
	if fn, ok := f.overrides[id.Type]; ok {
		cs, err := fn(id)
		if err != nil || cs != nil {
			if cs != nil {
				cs = f.publish(cacheKey{id: id}, cs)
			}
			return cs, err
		}
	}
	bucket := f.lookup.bucket(id.Tenant)
	if entry := bucket.last(id.Type); entry != nil {
		return f.tryCreateExact(entry, id, chain, 0)
	}
	if g, args := bucket.closing(id.Type); g != nil {
		return f.tryCreateOpenGeneric(bucket.last(g), id, args, chain, 0, true)
	}
	return f.tryCreateEnumerable(id, chain)
}

// ── exact ─────────────────────────────────────────────────────────────────────

func (f *callSiteFactory) tryCreateExact(entry *descriptorEntry, id ServiceIdentifier, chain *callSiteChain, slot Slot) (*CallSite, error) {
	key := cacheKey{id: id, slot: slot}
	if cs := f.cached(key); cs != nil {
		return cs, nil
	}
	if entry.transposed() {
		shared, err := f.tryCreateExact(entry.shared, id.shared(), chain, entry.shared.slot)
		if err != nil {
			return nil, err
		}
		return f.publish(key, newTransposedCallSite(id, shared)), nil
	}

	d := entry.descriptor
	var (
		cs  *CallSite
		err error
	)
	switch {
	case d.hasInstance:
		cs, err = newConstantCallSite(id, d.Instance)
	case d.Factory != nil:
		cs = newFactoryCallSite(newResultCache(d.Lifetime, id, slot), id, d.Factory)
	default:
		ctors := d.constructors
		if len(ctors) == 0 {
			ctors = f.activator.Constructors(d.ImplementationType)
		}
		cs, err = f.createConstructorCallSite(newResultCache(d.Lifetime, id, slot), id, d.ImplementationType, ctors, chain)
	}
	if err != nil {
		return nil, err
	}
	return f.publish(key, cs), nil
}

// ── open generics ─────────────────────────────────────────────────────────────

// tryCreateOpenGeneric closes the entry's implementation over args. A
// constraint failure is an error only for top-level requests; while
// collecting slice items it just means the entry does not apply.
func (f *callSiteFactory) tryCreateOpenGeneric(entry *descriptorEntry, id ServiceIdentifier, args []reflect.Type, chain *callSiteChain, slot Slot, throwOnConstraint bool) (*CallSite, error) {
	key := cacheKey{id: id, slot: slot}
	if cs := f.cached(key); cs != nil {
		return cs, nil
	}
	if entry.transposed() {
		shared, err := f.tryCreateOpenGeneric(entry.shared, id.shared(), args, chain, entry.shared.slot, throwOnConstraint)
		if err != nil || shared == nil {
			return nil, err
		}
		return f.publish(key, newTransposedCallSite(id, shared)), nil
	}

	d := entry.descriptor
	implType, ctors, err := d.OpenImplementation.instantiate(args)
	if err != nil {
		if !throwOnConstraint {
			return nil, nil
		}
		ce := newError(ErrConstraintViolation, id,
			"cannot close %s over [%s] for service %s", d.OpenImplementation, argsString(args), id)
		ce.Err = err
		return nil, ce
	}
	cs, err := f.createConstructorCallSite(newResultCache(d.Lifetime, id, slot), id, implType, ctors, chain)
	if err != nil {
		return nil, err
	}
	return f.publish(key, cs), nil
}

// ── slices ────────────────────────────────────────────────────────────────────

// tryCreateEnumerable answers []T with every registration of T in
// registration order. The result is cached at the least sticky location of
// its items, and only when that is scope or root.
func (f *callSiteFactory) tryCreateEnumerable(id ServiceIdentifier, chain *callSiteChain) (*CallSite, error) {
	if id.Type.Kind() != reflect.Slice {
		return nil, nil
	}
	key := cacheKey{id: id}
	if cs := f.cached(key); cs != nil {
		return cs, nil
	}
	chain.add(id, nil)
	defer chain.remove(id)

	itemType := id.Type.Elem()
	itemID := ServiceIdentifier{Type: itemType, Tenant: id.Tenant}
	bucket := f.lookup.bucket(id.Tenant)
	location := CacheRoot
	var items []*CallSite

	if g, _ := bucket.closing(itemType); g == nil {
		for _, entry := range bucket.entries(itemType) {
			cs, err := f.tryCreateExact(entry, itemID, chain, entry.slot)
			if err != nil {
				return nil, err
			}
			location = leastSticky(location, cs.cache.Location)
			items = append(items, cs)
		}
	} else {
		// Exact and open generic registrations interleave; walk every
		// registration newest first so slots count up from 0.
		var slot Slot
		for i := len(bucket.ordered) - 1; i >= 0; i-- {
			entry := bucket.ordered[i]
			var (
				cs  *CallSite
				err error
			)
			switch d := entry.descriptor; {
			case d.OpenService == nil && d.ServiceType == itemType:
				cs, err = f.tryCreateExact(entry, itemID, chain, slot)
			case d.OpenService != nil:
				if args, ok := d.OpenService.arguments(itemType); ok {
					cs, err = f.tryCreateOpenGeneric(entry, itemID, args, chain, slot, false)
				}
			}
			if err != nil {
				return nil, err
			}
			if cs != nil {
				slot++
				location = leastSticky(location, cs.cache.Location)
				items = append(items, cs)
			}
		}
		slices.Reverse(items)
	}

	cache := noCache
	if location == CacheScope || location == CacheRoot {
		cache = ResultCache{Location: location, key: key}
	}
	return f.publish(key, newEnumerableCallSite(cache, id, itemType, items)), nil
}

// ── constructors ──────────────────────────────────────────────────────────────

func (f *callSiteFactory) createConstructorCallSite(cache ResultCache, id ServiceIdentifier, implType reflect.Type, ctors []*Constructor, chain *callSiteChain) (*CallSite, error) {
	if !implType.AssignableTo(id.Type) {
		e := newError(ErrImplementationNotAssignable, id,
			"implementation type %s cannot be converted to service type %s", implType, id)
		e.Related = implType
		return nil, e
	}
	chain.add(id, implType)
	defer chain.remove(id)

	switch len(ctors) {
	case 0:
		e := newError(ErrNoConstructorMatch, id, "no constructor for type %s could be located", implType)
		e.Related = implType
		return nil, e
	case 1:
		args, err := f.createArguments(id, implType, ctors[0], chain, true)
		if err != nil {
			return nil, err
		}
		return newConstructorCallSite(cache, id, ctors[0], args), nil
	}

	sorted := slices.Clone(ctors)
	slices.SortStableFunc(sorted, func(a, b *Constructor) int {
		return len(b.params) - len(a.params)
	})
	var (
		best     *Constructor
		bestArgs []*CallSite
		bestSet  map[reflect.Type]bool
	)
	for _, ctor := range sorted {
		args, err := f.createArguments(id, implType, ctor, chain, false)
		if err != nil {
			return nil, err
		}
		if args == nil {
			continue
		}
		if best == nil {
			best, bestArgs = ctor, args
			continue
		}
		if bestSet == nil {
			bestSet = make(map[reflect.Type]bool, len(best.params))
			for _, p := range best.params {
				bestSet[p.Type] = true
			}
		}
		for _, p := range ctor.params {
			if !bestSet[p.Type] {
				e := newError(ErrAmbiguousConstructor, id,
					"unable to activate type %s: the constructors %s and %s are ambiguous", implType, best, ctor)
				e.Related = implType
				return nil, e
			}
		}
	}
	if best == nil {
		e := newError(ErrUnableToActivate, id,
			"no constructor for type %s can be instantiated using services from the container and default values", implType)
		e.Related = implType
		return nil, e
	}
	return newConstructorCallSite(cache, id, best, bestArgs), nil
}

// createArguments builds the argument call-sites of ctor. When a parameter
// cannot be satisfied it fails if required, or returns nil args otherwise.
func (f *callSiteFactory) createArguments(id ServiceIdentifier, implType reflect.Type, ctor *Constructor, chain *callSiteChain, required bool) ([]*CallSite, error) {
	args := make([]*CallSite, len(ctor.params))
	for i, p := range ctor.params {
		pid := ServiceIdentifier{Type: p.Type, Tenant: id.Tenant}
		cs, err := f.getCallSite(pid, chain)
		if err != nil {
			return nil, err
		}
		if cs == nil && p.HasDefault {
			if cs, err = newConstantCallSite(pid, p.Default); err != nil {
				return nil, err
			}
		}
		if cs == nil {
			if !required {
				return nil, nil
			}
			kind, what := ErrCannotResolveService, "service"
			if id.Tenant == nil && f.tenantOnly(p.Type) {
				kind, what = ErrCannotResolveTenantService, "tenant service"
			}
			e := newError(kind, id, "unable to resolve %s for type %s while attempting to activate %s",
				what, p.Type, implType)
			e.Related = p.Type
			return nil, e
		}
		args[i] = cs
	}
	return args, nil
}

// tenantOnly reports whether t can only be resolved with a tenant.
func (f *callSiteFactory) tenantOnly(t reflect.Type) bool {
	if _, ok := f.overrides[t]; ok {
		return true
	}
	return f.lookup.tenanted.contains(t)
}

// ── queries ───────────────────────────────────────────────────────────────────

// isService reports whether id can be resolved without building it.
func (f *callSiteFactory) isService(id ServiceIdentifier) bool {
	if id.Type == nil {
		return false
	}
	if f.lookup.bucket(id.Tenant).contains(id.Type) {
		return true
	}
	if fn, ok := f.overrides[id.Type]; ok {
		cs, _ := fn(id)
		return cs != nil
	}
	return id.Type.Kind() == reflect.Slice
}
