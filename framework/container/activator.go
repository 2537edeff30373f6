package container

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var errorType = reflect.TypeFor[error]()

// Activator enumerates the constructors available for an implementation
// type. It is consulted for descriptors registered without constructors of
// their own. *Collection is the default Activator.
type Activator interface {
	Constructors(implementationType reflect.Type) []*Constructor
}

// Parameter is one constructor input.
type Parameter struct {
	Type       reflect.Type
	Default    any
	HasDefault bool
}

// Constructor wraps a Go function that builds an implementation type. The
// function returns the value, optionally followed by an error.
//
//	container.Ctor(NewMailer, container.Default(1, 25))
type Constructor struct {
	fn       reflect.Value
	out      reflect.Type
	params   []Parameter
	hasError bool
	err      error
}

// CtorOption customises a Constructor.
type CtorOption func(*Constructor) error

// Default declares the value used for parameter index when no service
// satisfies it.
func Default(index int, value any) CtorOption {
	return func(c *Constructor) error {
		if index < 0 || index >= len(c.params) {
			return fmt.Errorf("%w: %s has no parameter %d", ErrInvalidConstructor, c, index)
		}
		p := &c.params[index]
		if !assignable(value, p.Type) {
			return fmt.Errorf("%w: default %T for parameter %d of %s is not a %s",
				ErrInvalidConstructor, value, index, c, p.Type)
		}
		p.Default = value
		p.HasDefault = true
		return nil
	}
}

// Ctor wraps fn. An invalid fn is reported when the constructor is added to a
// collection.
func Ctor(fn any, opts ...CtorOption) *Constructor {
	c, err := newConstructor(fn)
	if err != nil {
		return &Constructor{err: err}
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			c.err = err
			break
		}
	}
	return c
}

func newConstructor(fn any) (*Constructor, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: %s is variadic", ErrInvalidConstructor, t)
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("%w: %s must return T or (T, error)", ErrInvalidConstructor, t)
	}
	c := &Constructor{fn: v, out: t.Out(0), hasError: t.NumOut() == 2}
	c.params = make([]Parameter, t.NumIn())
	for i := range c.params {
		c.params[i] = Parameter{Type: t.In(i)}
	}
	return c, nil
}

// asConstructor accepts a func or a *Constructor.
func asConstructor(v any) (*Constructor, error) {
	if c, ok := v.(*Constructor); ok {
		if c == nil {
			return nil, fmt.Errorf("%w: nil constructor", ErrInvalidConstructor)
		}
		return c, c.err
	}
	return newConstructor(v)
}

// Out is the implementation type the constructor builds.
func (c *Constructor) Out() reflect.Type { return c.out }

// Params lists the constructor inputs.
func (c *Constructor) Params() []Parameter { return c.params }

func (c *Constructor) String() string {
	if !c.fn.IsValid() {
		return "<invalid constructor>"
	}
	ins := make([]string, len(c.params))
	for i, p := range c.params {
		ins[i] = typeName(p.Type)
	}
	return fmt.Sprintf("func(%s) %s", strings.Join(ins, ", "), typeName(c.out))
}

func (c *Constructor) invoke(args []reflect.Value) (any, error) {
	out := c.fn.Call(args)
	if c.hasError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// ── catalog ───────────────────────────────────────────────────────────────────

// catalog is the constructor registry behind Collection.
type catalog struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]*Constructor
}

func (c *catalog) add(ctor *Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byType == nil {
		c.byType = make(map[reflect.Type][]*Constructor)
	}
	for _, existing := range c.byType[ctor.out] {
		if existing == ctor {
			return
		}
	}
	c.byType[ctor.out] = append(c.byType[ctor.out], ctor)
}

func (c *catalog) constructors(t reflect.Type) []*Constructor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byType[t]
}

// ── value helpers ─────────────────────────────────────────────────────────────

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	}
	return false
}

// assignable reports whether v can be stored in a variable of type t.
func assignable(v any, t reflect.Type) bool {
	if v == nil {
		return nillable(t)
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

// valueFor converts a resolved value into an argument of type t.
func valueFor(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
