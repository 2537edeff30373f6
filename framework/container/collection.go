package container

import (
	"errors"
	"fmt"
	"reflect"
)

// Collection is the ordered list of registrations a Container is built from.
// Registration order matters: the last registration of a type wins for
// direct resolution, and slice resolution yields all of them in order.
//
//	services := container.NewCollection()
//	services.Add(
//	    container.Singleton[Clock](NewSystemClock),
//	    container.Scoped[*Greeter](NewGreeter).Tenanted(),
//	)
type Collection struct {
	descriptors []*ServiceDescriptor
	overrides   map[reflect.Type]OverrideFunc
	catalog     catalog
	errs        []error
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{overrides: make(map[reflect.Type]OverrideFunc)}
}

// Add appends descriptors. Malformed descriptors are reported by Build.
func (c *Collection) Add(descriptors ...*ServiceDescriptor) *Collection {
	for _, d := range descriptors {
		if d == nil {
			c.errs = append(c.errs, fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor))
			continue
		}
		c.descriptors = append(c.descriptors, d)
	}
	return c
}

// Provide teaches the collection how to build implementation types that are
// registered without constructors of their own (see Describe).
//
//	services.Provide(NewSmtpMailer)
//	services.Add(container.Describe(mailerType, smtpMailerType, container.LifetimeSingleton))
func (c *Collection) Provide(ctors ...any) *Collection {
	for _, raw := range ctors {
		ctor, err := asConstructor(raw)
		if err != nil {
			c.errs = append(c.errs, err)
			continue
		}
		c.catalog.add(ctor)
	}
	return c
}

// Constructors implements Activator.
func (c *Collection) Constructors(implementationType reflect.Type) []*Constructor {
	return c.catalog.constructors(implementationType)
}

// Descriptors returns a copy of the registrations in order.
func (c *Collection) Descriptors() []*ServiceDescriptor {
	out := make([]*ServiceDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len is the number of registrations.
func (c *Collection) Len() int { return len(c.descriptors) }

// Err reports registration errors collected so far.
func (c *Collection) Err() error { return errors.Join(c.errs...) }
