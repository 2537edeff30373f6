package container

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// lockFlags records which locks the current goroutine already holds for the
// resolution tree being evaluated.
type lockFlags uint8

const (
	// lockScope: the mutex of resolveContext.scope (never the root scope).
	lockScope lockFlags = 1 << iota
	// lockRoot: a root call-site lock somewhere up the tree.
	lockRoot
)

// resolveFrame lives as long as one top-level resolution. Providers handed
// to factories while it is active reuse the locks held at that point.
type resolveFrame struct {
	done atomic.Bool
}

type resolveContext struct {
	scope *engineScope
	locks lockFlags
	frame *resolveFrame
}

// provider returns the ServiceProvider given to factories and to
// constructors asking for one.
func (ctx resolveContext) provider(tenant *TenantIdentifier) *scopeProvider {
	return &scopeProvider{scope: ctx.scope, tenant: tenant, locks: ctx.locks, frame: ctx.frame}
}

// capture hands v to the context scope for disposal.
func (ctx resolveContext) capture(v any) (any, error) {
	if ctx.locks&lockScope != 0 {
		return ctx.scope.captureLocked(v)
	}
	return ctx.scope.captureDisposable(v)
}

// produceFunc evaluates a call-site without looking at its cache.
type produceFunc func(ctx resolveContext) (any, error)

// tiers implements the cache locations shared by every resolver strategy.
type tiers struct {
	root    *engineScope
	metrics *Metrics
}

func (t *tiers) cached(cs *CallSite, ctx resolveContext, produce produceFunc) (any, error) {
	switch cs.cache.Location {
	case CacheRoot:
		return t.rootCache(cs, ctx, produce)
	case CacheScope:
		if ctx.scope.root {
			return t.rootCache(cs, ctx, produce)
		}
		return t.scopeCache(cs, ctx, produce)
	case CacheDispose:
		v, err := produce(ctx)
		if err != nil || !cs.captureDisposable() {
			return v, err
		}
		return ctx.capture(v)
	}
	return produce(ctx)
}

// rootCache memoizes on the call-site itself, under the call-site's own
// lock, and evaluates against the root scope.
func (t *tiers) rootCache(cs *CallSite, ctx resolveContext, produce produceFunc) (any, error) {
	if v, ok := cs.cell.load(); ok {
		return v, nil
	}
	cs.cell.mu.Lock()
	defer cs.cell.mu.Unlock()
	if v, ok := cs.cell.load(); ok {
		return v, nil
	}
	rc := resolveContext{scope: t.root, locks: ctx.locks&^lockScope | lockRoot, frame: ctx.frame}
	v, err := produce(rc)
	if err != nil {
		return nil, err
	}
	if cs.captureDisposable() {
		if v, err = t.root.captureDisposable(v); err != nil {
			return nil, err
		}
	}
	cs.cell.store(v)
	return v, nil
}

// scopeCache memoizes in the scope's map under the scope mutex, taken once
// per resolution tree.
func (t *tiers) scopeCache(cs *CallSite, ctx resolveContext, produce produceFunc) (any, error) {
	scope := ctx.scope
	if ctx.locks&lockScope == 0 {
		scope.mu.Lock()
		defer scope.mu.Unlock()
	}
	if v, ok := scope.resolved[cs.cache.key]; ok {
		return v, nil
	}
	rc := resolveContext{scope: scope, locks: ctx.locks | lockScope, frame: ctx.frame}
	v, err := produce(rc)
	if err != nil {
		return nil, err
	}
	if cs.captureDisposable() {
		if v, err = scope.captureLocked(v); err != nil {
			return nil, err
		}
	}
	scope.resolved[cs.cache.key] = v
	return v, nil
}

// ── shared node evaluation ────────────────────────────────────────────────────

func (t *tiers) construct(cs *CallSite, args []reflect.Value) (any, error) {
	t.metrics.observeConstruction(KindConstructor)
	return cs.ctor.invoke(args)
}

func (t *tiers) callFactory(cs *CallSite, ctx resolveContext) (any, error) {
	t.metrics.observeConstruction(KindFactory)
	return cs.factory(ctx.provider(cs.service.Tenant))
}

func argument(cs *CallSite, v any, want reflect.Type) (reflect.Value, error) {
	if v != nil && !reflect.TypeOf(v).AssignableTo(want) {
		return reflect.Value{}, newError(ErrConstantTypeMismatch, cs.service,
			"value of type %T produced for %s cannot be used as %s", v, cs.service, want)
	}
	return valueFor(v, want), nil
}

// ── runtime resolver ──────────────────────────────────────────────────────────

// runtimeResolver walks the call-site tree on every resolution.
type runtimeResolver struct {
	tiers
}

func (r *runtimeResolver) resolve(cs *CallSite, ctx resolveContext) (any, error) {
	if ctx.scope.root {
		if v, ok := cs.cell.load(); ok {
			return v, nil
		}
	}
	if ctx.frame == nil {
		ctx.frame = &resolveFrame{}
		defer ctx.frame.done.Store(true)
	}
	return r.visit(cs, ctx)
}

func (r *runtimeResolver) realize(cs *CallSite) serviceAccessor {
	return func(ctx resolveContext) (any, error) { return r.resolve(cs, ctx) }
}

func (r *runtimeResolver) visit(cs *CallSite, ctx resolveContext) (any, error) {
	return r.cached(cs, ctx, func(ctx resolveContext) (any, error) {
		return r.visitMain(cs, ctx)
	})
}

func (r *runtimeResolver) visitMain(cs *CallSite, ctx resolveContext) (any, error) {
	switch cs.kind {
	case KindConstant:
		return cs.value, nil
	case KindFactory:
		return r.callFactory(cs, ctx)
	case KindConstructor:
		args := make([]reflect.Value, len(cs.args))
		for i, a := range cs.args {
			v, err := r.visit(a, ctx)
			if err != nil {
				return nil, err
			}
			if args[i], err = argument(a, v, cs.ctor.params[i].Type); err != nil {
				return nil, err
			}
		}
		return r.construct(cs, args)
	case KindEnumerable:
		out := reflect.MakeSlice(reflect.SliceOf(cs.itemType), len(cs.items), len(cs.items))
		for i, item := range cs.items {
			v, err := r.visit(item, ctx)
			if err != nil {
				return nil, err
			}
			arg, err := argument(item, v, cs.itemType)
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(arg)
		}
		return out.Interface(), nil
	case KindServiceProvider:
		return ctx.provider(cs.service.Tenant), nil
	case KindTransposedShared:
		return r.visit(cs.shared, ctx)
	}
	panic(fmt.Sprintf("container: unknown call-site kind %d", cs.kind))
}

// ── compiled resolver ─────────────────────────────────────────────────────────

// compiledResolver turns a call-site tree into nested closures once, so
// resolution skips the kind dispatch. Caching and capture go through the
// same tiers as the runtime resolver.
type compiledResolver struct {
	tiers
}

func (c *compiledResolver) realize(cs *CallSite) serviceAccessor {
	compiled := c.compile(cs, make(map[*CallSite]produceFunc))
	return func(ctx resolveContext) (any, error) {
		if ctx.scope.root {
			if v, ok := cs.cell.load(); ok {
				return v, nil
			}
		}
		if ctx.frame == nil {
			ctx.frame = &resolveFrame{}
			defer ctx.frame.done.Store(true)
		}
		return compiled(ctx)
	}
}

func (c *compiledResolver) compile(cs *CallSite, seen map[*CallSite]produceFunc) produceFunc {
	if fn, ok := seen[cs]; ok {
		return fn
	}
	main := c.compileMain(cs, seen)
	fn := func(ctx resolveContext) (any, error) { return c.cached(cs, ctx, main) }
	seen[cs] = fn
	return fn
}

func (c *compiledResolver) compileMain(cs *CallSite, seen map[*CallSite]produceFunc) produceFunc {
	switch cs.kind {
	case KindConstant:
		value := cs.value
		return func(resolveContext) (any, error) { return value, nil }
	case KindFactory:
		return func(ctx resolveContext) (any, error) { return c.callFactory(cs, ctx) }
	case KindConstructor:
		args := make([]produceFunc, len(cs.args))
		for i, a := range cs.args {
			args[i] = c.compile(a, seen)
		}
		return func(ctx resolveContext) (any, error) {
			in := make([]reflect.Value, len(args))
			for i, arg := range args {
				v, err := arg(ctx)
				if err != nil {
					return nil, err
				}
				if in[i], err = argument(cs.args[i], v, cs.ctor.params[i].Type); err != nil {
					return nil, err
				}
			}
			return c.construct(cs, in)
		}
	case KindEnumerable:
		items := make([]produceFunc, len(cs.items))
		for i, item := range cs.items {
			items[i] = c.compile(item, seen)
		}
		sliceType := reflect.SliceOf(cs.itemType)
		return func(ctx resolveContext) (any, error) {
			out := reflect.MakeSlice(sliceType, len(items), len(items))
			for i, item := range items {
				v, err := item(ctx)
				if err != nil {
					return nil, err
				}
				arg, err := argument(cs.items[i], v, cs.itemType)
				if err != nil {
					return nil, err
				}
				out.Index(i).Set(arg)
			}
			return out.Interface(), nil
		}
	case KindServiceProvider:
		return func(ctx resolveContext) (any, error) { return ctx.provider(cs.service.Tenant), nil }
	case KindTransposedShared:
		return c.compile(cs.shared, seen)
	}
	panic(fmt.Sprintf("container: unknown call-site kind %d", cs.kind))
}
