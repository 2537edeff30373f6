package container

import (
	"errors"
	"fmt"
)

// ── Provider interface ────────────────────────────────────────────────────────

// Provider groups related registrations, the way a Laravel service provider
// does.
//
// Register runs before the container exists and may only add descriptors.
// Boot runs once the container is built, so it may resolve anything.
//
//	type GreetingProvider struct{ container.BaseProvider }
//
//	func (p *GreetingProvider) Register(services *container.Collection) {
//	    services.Add(container.Singleton[*Greeter](NewGreeter).Tenanted())
//	}
type Provider interface {
	Register(services *Collection)
	Boot(app ServiceProvider) error
}

// BaseProvider is embeddable and gives a no-op Boot.
type BaseProvider struct{}

func (BaseProvider) Boot(ServiceProvider) error { return nil }

// ErrProvidersBooted is returned when a provider is registered after Boot.
var ErrProvidersBooted = errors.New("container: providers already booted")

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry runs providers against one Collection and remembers which
// provider added each descriptor.
type ProviderRegistry struct {
	services   *Collection
	providers  []Provider
	registered map[Provider]bool
	origin     map[*ServiceDescriptor]string
	booted     bool
}

// NewProviderRegistry creates a registry filling services.
func NewProviderRegistry(services *Collection) *ProviderRegistry {
	return &ProviderRegistry{
		services:   services,
		registered: make(map[Provider]bool),
		origin:     make(map[*ServiceDescriptor]string),
	}
}

// Register calls p.Register. Registering the same provider twice is a no-op.
func (r *ProviderRegistry) Register(p Provider) error {
	if r.booted {
		return fmt.Errorf("%w: cannot register %s", ErrProvidersBooted, ProviderName(p))
	}
	if r.registered[p] {
		return nil
	}
	r.registered[p] = true

	before := r.services.Len()
	p.Register(r.services)
	name := ProviderName(p)
	for _, d := range r.services.descriptors[before:] {
		r.origin[d] = name
	}
	r.providers = append(r.providers, p)
	return nil
}

// Boot calls Boot on every provider in registration order and stops at the
// first failure.
func (r *ProviderRegistry) Boot(app ServiceProvider) error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, p := range r.providers {
		if err := p.Boot(app); err != nil {
			return fmt.Errorf("booting %s: %w", ProviderName(p), err)
		}
	}
	return nil
}

// Booted reports whether Boot has run.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the registered providers in order.
func (r *ProviderRegistry) Providers() []Provider { return r.providers }

// Origin names the provider that added d, or "" when d was added directly.
func (r *ProviderRegistry) Origin(d *ServiceDescriptor) string { return r.origin[d] }

// ProviderName is the display name of p.
func ProviderName(p Provider) string {
	return fmt.Sprintf("%T", p)
}
