package container

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// CallSiteKind tags how a CallSite produces its value.
type CallSiteKind int

const (
	KindConstant CallSiteKind = iota
	KindFactory
	KindConstructor
	KindEnumerable
	KindServiceProvider
	KindTransposedShared
)

func (k CallSiteKind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindFactory:
		return "factory"
	case KindConstructor:
		return "constructor"
	case KindEnumerable:
		return "enumerable"
	case KindServiceProvider:
		return "serviceProvider"
	case KindTransposedShared:
		return "transposedShared"
	}
	return "unknown"
}

// CallSite is a node of the resolution graph: how to build the value for one
// identifier and where to memoize it. Call-sites are immutable once
// published, except for the memo cell of root-cached nodes.
type CallSite struct {
	kind           CallSiteKind
	service        ServiceIdentifier
	implementation reflect.Type
	// implTenanted is false only for transposed call-sites, whose value
	// belongs to the shared side.
	implTenanted bool
	cache        ResultCache

	value    any
	factory  Factory
	ctor     *Constructor
	args     []*CallSite
	itemType reflect.Type
	items    []*CallSite
	shared   *CallSite

	cell onceCell
}

// Kind reports how the call-site produces its value.
func (cs *CallSite) Kind() CallSiteKind { return cs.kind }

// Service is the identifier the call-site satisfies.
func (cs *CallSite) Service() ServiceIdentifier { return cs.service }

// ImplementationType is the type of the produced value, when known.
func (cs *CallSite) ImplementationType() reflect.Type { return cs.implementation }

// Cache is the memoization policy.
func (cs *CallSite) Cache() ResultCache { return cs.cache }

// Children returns constructor arguments, enumerable items or the wrapped
// shared call-site.
func (cs *CallSite) Children() []*CallSite {
	switch cs.kind {
	case KindConstructor:
		return cs.args
	case KindEnumerable:
		return cs.items
	case KindTransposedShared:
		return []*CallSite{cs.shared}
	}
	return nil
}

// captureDisposable reports whether values produced here belong to the
// scope that resolves them. Transposed values are owned by the shared side.
func (cs *CallSite) captureDisposable() bool {
	return cs.service.IsTenanted() == cs.implTenanted
}

func (cs *CallSite) String() string {
	return fmt.Sprintf("%s %s (%s)", cs.kind, cs.service, cs.cache.Location)
}

// ── constructors ──────────────────────────────────────────────────────────────

func newConstantCallSite(id ServiceIdentifier, value any) (*CallSite, error) {
	if !assignable(value, id.Type) {
		e := newError(ErrConstantTypeMismatch, id,
			"constant value of type %T cannot be converted to service type %s", value, id)
		e.Related = reflect.TypeOf(value)
		return nil, e
	}
	cs := &CallSite{
		kind:         KindConstant,
		service:      id,
		implTenanted: id.IsTenanted(),
		cache:        noCache,
		value:        value,
	}
	if value != nil {
		cs.implementation = reflect.TypeOf(value)
	}
	cs.cell.store(value)
	return cs, nil
}

func newFactoryCallSite(cache ResultCache, id ServiceIdentifier, factory Factory) *CallSite {
	return &CallSite{
		kind:         KindFactory,
		service:      id,
		implTenanted: id.IsTenanted(),
		cache:        cache,
		factory:      factory,
	}
}

func newConstructorCallSite(cache ResultCache, id ServiceIdentifier, ctor *Constructor, args []*CallSite) *CallSite {
	return &CallSite{
		kind:           KindConstructor,
		service:        id,
		implementation: ctor.out,
		implTenanted:   id.IsTenanted(),
		cache:          cache,
		ctor:           ctor,
		args:           args,
	}
}

func newEnumerableCallSite(cache ResultCache, id ServiceIdentifier, itemType reflect.Type, items []*CallSite) *CallSite {
	return &CallSite{
		kind:           KindEnumerable,
		service:        id,
		implementation: id.Type,
		implTenanted:   id.IsTenanted(),
		cache:          cache,
		itemType:       itemType,
		items:          items,
	}
}

func newServiceProviderCallSite(id ServiceIdentifier) *CallSite {
	return &CallSite{
		kind:         KindServiceProvider,
		service:      id,
		implTenanted: id.IsTenanted(),
		cache:        noCache,
	}
}

// newTransposedCallSite wraps the shared call-site a tenanted request
// forwards to.
func newTransposedCallSite(id ServiceIdentifier, shared *CallSite) *CallSite {
	return &CallSite{
		kind:           KindTransposedShared,
		service:        id,
		implementation: shared.implementation,
		cache:          noCache,
		shared:         shared,
	}
}

// ── memo cell ─────────────────────────────────────────────────────────────────

// onceCell holds a value written at most once. mu serializes the writers;
// readers only load the pointer.
type onceCell struct {
	mu sync.Mutex
	p  atomic.Pointer[memo]
}

type memo struct{ v any }

func (c *onceCell) load() (any, bool) {
	if m := c.p.Load(); m != nil {
		return m.v, true
	}
	return nil, false
}

func (c *onceCell) store(v any) {
	c.p.CompareAndSwap(nil, &memo{v: v})
}
