package container

import (
	"fmt"
	"reflect"
)

// Factory builds a value on demand. The provider it receives resolves in the
// tenant and scope the value is being built for.
type Factory func(sp ServiceProvider) (any, error)

// ServiceDescriptor maps a service type to exactly one implementation source:
// an implementation type, a Factory or an Instance.
type ServiceDescriptor struct {
	ServiceType reflect.Type
	// OpenService replaces ServiceType for open generic registrations.
	OpenService *Generic
	Lifetime    Lifetime
	Tenancy     Tenancy

	ImplementationType reflect.Type
	OpenImplementation *Generic
	Factory            Factory
	Instance           any

	hasInstance  bool
	constructors []*Constructor
	err          error
}

// ── Builders ──────────────────────────────────────────────────────────────────

// Singleton registers T built by ctors, once per container.
//
//	// Laravel: $app->singleton(Mailer::class, fn() => new SmtpMailer(...))
//	services.Add(container.Singleton[Mailer](NewSmtpMailer))
func Singleton[T any](ctors ...any) *ServiceDescriptor {
	return Describe(reflect.TypeFor[T](), nil, LifetimeSingleton, ctors...)
}

// Scoped registers T built by ctors, once per scope.
func Scoped[T any](ctors ...any) *ServiceDescriptor {
	return Describe(reflect.TypeFor[T](), nil, LifetimeScoped, ctors...)
}

// Transient registers T built by ctors on every resolution.
//
//	// Laravel: $app->bind(Report::class, fn() => new Report)
func Transient[T any](ctors ...any) *ServiceDescriptor {
	return Describe(reflect.TypeFor[T](), nil, LifetimeTransient, ctors...)
}

// Instance registers a pre-built singleton value.
//
//	// Laravel: $app->instance(Config::class, $config)
func Instance[T any](v T) *ServiceDescriptor {
	return DescribeInstance(reflect.TypeFor[T](), v)
}

// FactoryOf registers T built by fn.
func FactoryOf[T any](lifetime Lifetime, fn func(sp ServiceProvider) (T, error)) *ServiceDescriptor {
	return DescribeFactory(reflect.TypeFor[T](), lifetime, func(sp ServiceProvider) (any, error) {
		return fn(sp)
	})
}

// Describe registers serviceType implemented by implementationType. When
// ctors are given they define the implementation type; otherwise the
// collection's Activator supplies the constructors at resolution time. A nil
// implementationType without ctors means the service type implements itself.
func Describe(serviceType, implementationType reflect.Type, lifetime Lifetime, ctors ...any) *ServiceDescriptor {
	d := &ServiceDescriptor{ServiceType: serviceType, Lifetime: lifetime}
	for _, raw := range ctors {
		c, err := asConstructor(raw)
		if err != nil {
			d.err = err
			return d
		}
		if implementationType == nil {
			implementationType = c.out
		}
		if c.out != implementationType {
			d.err = fmt.Errorf("%w: %s does not build %s", ErrInvalidConstructor, c, implementationType)
			return d
		}
		d.constructors = append(d.constructors, c)
	}
	if implementationType == nil {
		implementationType = serviceType
	}
	d.ImplementationType = implementationType
	return d
}

// DescribeFactory registers serviceType built by fn.
func DescribeFactory(serviceType reflect.Type, lifetime Lifetime, fn Factory) *ServiceDescriptor {
	d := &ServiceDescriptor{ServiceType: serviceType, Lifetime: lifetime, Factory: fn}
	if fn == nil {
		d.err = fmt.Errorf("%w: nil factory for %s", ErrInvalidDescriptor, typeName(serviceType))
	}
	return d
}

// DescribeInstance registers a pre-built singleton for serviceType.
func DescribeInstance(serviceType reflect.Type, instance any) *ServiceDescriptor {
	return &ServiceDescriptor{
		ServiceType: serviceType,
		Lifetime:    LifetimeSingleton,
		Instance:    instance,
		hasInstance: true,
	}
}

// DescribeGeneric registers an open generic service implemented by an open
// generic implementation.
func DescribeGeneric(service, implementation *Generic, lifetime Lifetime) *ServiceDescriptor {
	return &ServiceDescriptor{OpenService: service, OpenImplementation: implementation, Lifetime: lifetime}
}

// Tenanted returns a copy of d registered per tenant.
//
//	services.Add(container.Singleton[*Settings](NewSettings).Tenanted())
func (d *ServiceDescriptor) Tenanted() *ServiceDescriptor {
	cp := *d
	cp.Tenancy = Tenanted
	return &cp
}

// IsShared reports whether d resolves to one value across tenants.
func (d *ServiceDescriptor) IsShared() bool { return d.Tenancy == Shared }

// Source names the implementation source: "type", "factory", "instance" or
// "generic".
func (d *ServiceDescriptor) Source() string {
	switch {
	case d.OpenService != nil:
		return "generic"
	case d.hasInstance:
		return "instance"
	case d.Factory != nil:
		return "factory"
	}
	return "type"
}

// key is the partition key: the service type or the open generic.
func (d *ServiceDescriptor) key() any {
	if d.OpenService != nil {
		return d.OpenService
	}
	return d.ServiceType
}

// implementationType is the type of the values d produces, when known.
func (d *ServiceDescriptor) implementationType() reflect.Type {
	switch {
	case d.hasInstance:
		if d.Instance == nil {
			return nil
		}
		return reflect.TypeOf(d.Instance)
	case d.Factory != nil:
		return nil
	}
	return d.ImplementationType
}

func (d *ServiceDescriptor) serviceName() string {
	if d.OpenService != nil {
		return d.OpenService.String()
	}
	return typeName(d.ServiceType)
}

func (d *ServiceDescriptor) String() string {
	s := fmt.Sprintf("%s %s %s", d.Tenancy, d.Lifetime, d.serviceName())
	switch d.Source() {
	case "generic":
		if d.OpenImplementation != nil {
			s += " => " + d.OpenImplementation.String()
		}
	case "instance":
		s += fmt.Sprintf(" => instance %T", d.Instance)
	case "factory":
		s += " => factory"
	default:
		s += " => " + typeName(d.ImplementationType)
	}
	return s
}

// validate checks the descriptor shape when the container is built.
func (d *ServiceDescriptor) validate() error {
	if d.err != nil {
		return d.err
	}
	if d.OpenService != nil {
		if err := d.OpenService.validate(); err != nil {
			return err
		}
		if d.OpenImplementation == nil {
			return &Error{
				Kind:   ErrOpenGenericImplementationMissing,
				Detail: fmt.Sprintf("open generic service %s requires an open generic implementation", d.OpenService),
			}
		}
		if err := d.OpenImplementation.validate(); err != nil {
			return err
		}
		if d.OpenImplementation.arity != d.OpenService.arity {
			return &Error{
				Kind: ErrArityMismatch,
				Detail: fmt.Sprintf("arity of open generic service %s does not match open generic implementation %s",
					d.OpenService, d.OpenImplementation),
			}
		}
		return nil
	}
	if d.ServiceType == nil {
		return fmt.Errorf("%w: missing service type", ErrInvalidDescriptor)
	}
	id := SharedIdentifier(d.ServiceType)
	switch {
	case d.OpenImplementation != nil:
		return newError(ErrTypeNotActivatable, id,
			"cannot instantiate open generic implementation %s for closed service %s", d.OpenImplementation, id)
	case d.hasInstance || d.Factory != nil:
		return nil
	case d.ImplementationType == nil:
		return fmt.Errorf("%w: %s has no implementation", ErrInvalidDescriptor, id)
	case d.ImplementationType.Kind() == reflect.Interface:
		e := newError(ErrTypeNotActivatable, id,
			"cannot instantiate implementation type %s for service %s", d.ImplementationType, id)
		e.Related = d.ImplementationType
		return e
	}
	return nil
}
