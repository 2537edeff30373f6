package container

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Generic stands in for an open generic definition, which Go reflection
// cannot express. On the service side, Close records which concrete types
// are instances of the definition. On the implementation side, Provide
// supplies a constructor per list of type arguments.
//
//	repos := container.NewGeneric("Repository", 1).
//	    Close(reflect.TypeFor[Repository[User]](), reflect.TypeFor[User]())
//	memory := container.NewGeneric("memoryRepository", 1).
//	    Provide(newMemoryRepository[User], reflect.TypeFor[User]())
//	services.Add(container.DescribeGeneric(repos, memory, container.LifetimeScoped))
type Generic struct {
	name  string
	arity int

	mu         sync.RWMutex
	closed     map[reflect.Type][]reflect.Type
	impls      []genericImpl
	constraint func(args []reflect.Type) error
	err        error
}

type genericImpl struct {
	args  []reflect.Type
	typ   reflect.Type
	ctors []*Constructor
}

// NewGeneric declares an open generic definition with the given number of
// type parameters.
func NewGeneric(name string, arity int) *Generic {
	return &Generic{
		name:   name,
		arity:  arity,
		closed: make(map[reflect.Type][]reflect.Type),
	}
}

func (g *Generic) Name() string { return g.name }
func (g *Generic) Arity() int   { return g.arity }

func (g *Generic) String() string {
	if g.arity == 1 {
		return g.name + "[T]"
	}
	params := make([]string, g.arity)
	for i := range params {
		params[i] = fmt.Sprintf("T%d", i+1)
	}
	return g.name + "[" + strings.Join(params, ", ") + "]"
}

// Close records closed as the instance of g over args.
func (g *Generic) Close(closed reflect.Type, args ...reflect.Type) *Generic {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(args) != g.arity {
		g.fail(fmt.Errorf("%w: %s closed with %d type arguments", ErrArityMismatch, g, len(args)))
		return g
	}
	g.closed[closed] = args
	return g
}

// Provide registers the constructor that builds the instance of g over args.
// Every constructor for the same args must build the same type.
func (g *Generic) Provide(ctor any, args ...reflect.Type) *Generic {
	c, err := asConstructor(ctor)
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case err != nil:
		g.fail(err)
		return g
	case len(args) != g.arity:
		g.fail(fmt.Errorf("%w: %s provided with %d type arguments", ErrArityMismatch, g, len(args)))
		return g
	}
	impl := g.find(args)
	if impl == nil {
		g.impls = append(g.impls, genericImpl{args: args, typ: c.out})
		impl = &g.impls[len(g.impls)-1]
	}
	if impl.typ != c.out {
		g.fail(fmt.Errorf("%w: %s builds both %s and %s over [%s]",
			ErrInvalidConstructor, g, impl.typ, c.out, argsString(args)))
		return g
	}
	impl.ctors = append(impl.ctors, c)
	return g
}

// Constrain installs a check over type arguments, run whenever g is closed.
// A non-nil result is reported as ErrConstraintViolation.
func (g *Generic) Constrain(fn func(args []reflect.Type) error) *Generic {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.constraint = fn
	return g
}

func (g *Generic) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *Generic) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// arguments returns the type arguments t was closed over, if t is an
// instance of g.
func (g *Generic) arguments(t reflect.Type) ([]reflect.Type, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	args, ok := g.closed[t]
	return args, ok
}

// instantiate closes the implementation definition over args.
func (g *Generic) instantiate(args []reflect.Type) (reflect.Type, []*Constructor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.constraint != nil {
		if err := g.constraint(args); err != nil {
			return nil, nil, err
		}
	}
	impl := g.find(args)
	if impl == nil {
		return nil, nil, fmt.Errorf("%s has no instance over [%s]", g, argsString(args))
	}
	return impl.typ, impl.ctors, nil
}

// find must be called with mu held.
func (g *Generic) find(args []reflect.Type) *genericImpl {
	for i := range g.impls {
		if slices.Equal(g.impls[i].args, args) {
			return &g.impls[i]
		}
	}
	return nil
}

func argsString(args []reflect.Type) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = typeName(a)
	}
	return strings.Join(names, ",")
}
