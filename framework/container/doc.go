// Package container is a multi-tenant dependency injection container.
//
// # Overview
//
// Registrations are collected in a Collection and frozen by Build into a
// Container. Every registration is either Shared, meaning one value for all
// tenants, or Tenanted, meaning an isolated value per tenant key. A tenant
// request resolves against every registration, and shared ones forward to
// the single shared value. A shared request only sees shared registrations.
//
//	services := container.NewCollection()
//	services.Add(
//	    container.Singleton[Clock](NewSystemClock),
//	    container.Singleton[*Settings](NewSettings).Tenanted(),
//	    container.Scoped[*Greeter](NewGreeter).Tenanted(),
//	)
//	c, err := container.Build[string](services, container.WithValidateScopes(true))
//
// # Lifetimes
//
// It mirrors Laravel's bind / singleton / scoped trio:
//
//	// Laravel: $app->singleton(Clock::class, ...)
//	container.Singleton[Clock](NewSystemClock)
//
//	// Laravel: $app->scoped(Greeter::class, ...)
//	container.Scoped[*Greeter](NewGreeter)
//
//	// Laravel: $app->bind(Report::class, ...)
//	container.Transient[*Report](NewReport)
//
// Singletons are owned by the root scope and transients by the scope that
// resolved them. Values implementing io.Closer or Shutdowner are disposed
// when their owner closes, newest first.
//
// # Resolving
//
//	settings, err := container.Resolve[*Settings](c, "acme")
//	clock, err := container.ResolveShared[Clock](c)
//
//	scope, err := c.CreateScope()
//	defer scope.Close()
//	greeter, err := container.Resolve[*Greeter](scope, "acme")
//
// Requesting a slice []T yields every registration of T in registration
// order. Constructors may depend on ServiceProvider, ScopeFactory,
// ServiceProviderIsService and TenantKeyAccessor[K].
//
// # Providers
//
// Providers group registrations and run a boot step once the container is
// built:
//
//	registry := container.NewProviderRegistry(services)
//	registry.Register(&GreetingProvider{})
//	c, err := container.Build[string](services)
//	err = registry.Boot(c.Shared())
package container
