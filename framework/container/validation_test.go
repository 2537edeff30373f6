package container_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-tenancy/framework/container"
)

// ── circular dependencies ─────────────────────────────────────────────────────

func TestValidation_CircularDependency(t *testing.T) {
	services := container.NewCollection()
	services.Add(
		container.Transient[*cycleA](newCycleA),
		container.Transient[*cycleB](newCycleB),
	)
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[*cycleA]())
	require.ErrorIs(t, err, container.ErrCircularDependency)

	var ce *container.Error
	require.ErrorAs(t, err, &ce)
	path := make([]reflect.Type, len(ce.Path))
	for i, id := range ce.Path {
		path[i] = id.Type
	}
	assert.Equal(t, []reflect.Type{
		reflect.TypeFor[*cycleA](),
		reflect.TypeFor[*cycleB](),
		reflect.TypeFor[*cycleA](),
	}, path)
	assert.Contains(t, err.Error(), "a circular dependency was detected")
}

func TestValidation_CircularDependencyIsNotCached(t *testing.T) {
	services := container.NewCollection()
	services.Add(
		container.Transient[*cycleA](newCycleA).Tenanted(),
		container.Transient[*cycleB](newCycleB).Tenanted(),
	)
	c, err := container.Build[string](services)
	require.NoError(t, err)

	for range 2 {
		_, err = c.GetService("acme", reflect.TypeFor[*cycleB]())
		assert.ErrorIs(t, err, container.ErrCircularDependency)
	}
}

// ── scope validation ──────────────────────────────────────────────────────────

type scopedDep struct{ n int }
type singletonConsumer struct{ dep *scopedDep }
type transientConsumer struct{ dep *scopedDep }

func scopeValidationServices(calls *int) *container.Collection {
	services := container.NewCollection()
	services.Add(
		container.Scoped[*scopedDep](func() *scopedDep {
			*calls++
			return &scopedDep{}
		}),
		container.Singleton[*singletonConsumer](func(d *scopedDep) *singletonConsumer {
			*calls++
			return &singletonConsumer{dep: d}
		}),
		container.Transient[*transientConsumer](func(d *scopedDep) *transientConsumer {
			*calls++
			return &transientConsumer{dep: d}
		}),
	)
	return services
}

func TestValidation_ScopedInSingleton(t *testing.T) {
	var calls int
	c, err := container.Build[string](scopeValidationServices(&calls), container.WithValidateScopes(true))
	require.NoError(t, err)
	scope, err := c.CreateScope()
	require.NoError(t, err)

	_, err = container.ResolveShared[*singletonConsumer](scope)
	require.ErrorIs(t, err, container.ErrScopedInSingleton)
	var ce *container.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, reflect.TypeFor[*singletonConsumer](), ce.Related)
	assert.Zero(t, calls, "validation runs before any constructor")
}

func TestValidation_ScopedResolvedFromRoot(t *testing.T) {
	var calls int
	c, err := container.Build[string](scopeValidationServices(&calls), container.WithValidateScopes(true))
	require.NoError(t, err)

	_, err = container.ResolveShared[*scopedDep](c)
	assert.ErrorIs(t, err, container.ErrDirectScopedResolvedFromRoot)

	_, err = container.ResolveShared[*transientConsumer](c)
	assert.ErrorIs(t, err, container.ErrScopedResolvedFromRoot)

	scope, err := c.CreateScope()
	require.NoError(t, err)
	defer scope.Close()
	_, err = container.ResolveShared[*transientConsumer](scope)
	assert.NoError(t, err)
}

func TestValidation_ScopesNotValidatedByDefault(t *testing.T) {
	var calls int
	c, err := container.Build[string](scopeValidationServices(&calls))
	require.NoError(t, err)

	consumer, err := container.ResolveShared[*singletonConsumer](c)
	require.NoError(t, err)
	assert.NotNil(t, consumer.dep)
}

func TestValidation_ScopeFactoryAllowedInSingleton(t *testing.T) {
	type worker struct{ scopes container.ScopeFactory }
	services := container.NewCollection()
	services.Add(container.Singleton[*worker](func(f container.ScopeFactory) *worker { return &worker{scopes: f} }))

	c, err := container.Build[string](services, container.WithValidateScopes(true), container.WithValidateOnBuild(true))
	require.NoError(t, err)

	w, err := container.ResolveShared[*worker](c)
	require.NoError(t, err)
	scope, err := w.scopes.CreateScope()
	require.NoError(t, err)
	assert.NoError(t, scope.Close())
}

// ── validate on build ─────────────────────────────────────────────────────────

func TestValidation_OnBuildAggregatesFailures(t *testing.T) {
	type missing struct{}
	type broken struct{}
	services := container.NewCollection()
	services.Add(
		container.Singleton[*broken](func(*missing) *broken { return &broken{} }),
		container.Transient[*cycleA](newCycleA),
		container.Transient[*cycleB](newCycleB),
	)

	_, err := container.Build[string](services, container.WithValidateOnBuild(true))
	require.Error(t, err)

	var be *container.BuildError
	require.ErrorAs(t, err, &be)
	assert.Len(t, be.Errors, 3)
	assert.ErrorIs(t, err, container.ErrCannotResolveService)
	assert.ErrorIs(t, err, container.ErrCircularDependency)
	assert.Contains(t, err.Error(), "some services are not able to be constructed")
}

func TestValidation_OnBuildDoesNotConstruct(t *testing.T) {
	var calls int
	services := container.NewCollection()
	services.Add(
		container.Singleton[*commonService](func() *commonService {
			calls++
			return newCommonService()
		}),
		container.Singleton[*tenantService](func(a container.TenantKeyAccessor[string]) *tenantService {
			calls++
			return newTenantService(a)
		}).Tenanted(),
	)
	_, err := container.Build[string](services, container.WithValidateOnBuild(true), container.WithValidateScopes(true))
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestValidation_OnBuildReportsScopedInSingleton(t *testing.T) {
	var calls int
	_, err := container.Build[string](scopeValidationServices(&calls),
		container.WithValidateOnBuild(true), container.WithValidateScopes(true))
	assert.ErrorIs(t, err, container.ErrScopedInSingleton)
}

// ── constructor selection ─────────────────────────────────────────────────────

type clock interface{ Now() int }
type fixedClock struct{ now int }

func (c *fixedClock) Now() int { return c.now }

type multi struct{ via string }

func newMultiEmpty() *multi                  { return &multi{via: "empty"} }
func newMultiWithClock(clock) *multi         { return &multi{via: "clock"} }
func newMultiWithGreeter(greeter) *multi     { return &multi{via: "greeter"} }
func newMultiWithBoth(clock, greeter) *multi { return &multi{via: "both"} }

func TestConstructor_PicksLongestSatisfiable(t *testing.T) {
	tests := []struct {
		name     string
		register []*container.ServiceDescriptor
		want     string
	}{
		{"nothing registered", nil, "empty"},
		{"clock registered", []*container.ServiceDescriptor{
			container.Instance[clock](&fixedClock{}),
		}, "clock"},
		{"clock and greeter registered", []*container.ServiceDescriptor{
			container.Instance[clock](&fixedClock{}),
			container.Singleton[greeter](newEnglish),
		}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := container.NewCollection()
			services.Add(tt.register...)
			services.Add(container.Transient[*multi](newMultiEmpty, newMultiWithClock, newMultiWithBoth))
			c, err := container.Build[string](services)
			require.NoError(t, err)

			m, err := container.ResolveShared[*multi](c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.via)
		})
	}
}

func TestConstructor_Ambiguous(t *testing.T) {
	services := container.NewCollection()
	services.Add(
		container.Instance[clock](&fixedClock{}),
		container.Singleton[greeter](newEnglish),
		container.Transient[*multi](newMultiWithClock, newMultiWithGreeter),
	)
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[*multi]())
	assert.ErrorIs(t, err, container.ErrAmbiguousConstructor)
}

func TestConstructor_UnableToActivate(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.Transient[*multi](newMultiWithClock, newMultiWithGreeter))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[*multi]())
	assert.ErrorIs(t, err, container.ErrUnableToActivate)
}

func TestConstructor_SingleWithMissingDependency(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.Transient[*multi](newMultiWithClock))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[*multi]())
	require.ErrorIs(t, err, container.ErrCannotResolveService)
	var ce *container.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, reflect.TypeFor[clock](), ce.Related)
}

func TestConstructor_DefaultParameter(t *testing.T) {
	type server struct{ port int }
	services := container.NewCollection()
	services.Add(container.Singleton[*server](container.Ctor(
		func(port int) *server { return &server{port: port} },
		container.Default(0, 8080),
	)))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	s, err := container.ResolveShared[*server](c)
	require.NoError(t, err)
	assert.Equal(t, 8080, s.port)
}

func TestConstructor_ReturnsError(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.Singleton[*commonService](func() (*commonService, error) {
		return nil, errCloseFailed
	}))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[*commonService]())
	assert.ErrorIs(t, err, errCloseFailed)
}

func TestConstructor_ActivatorCatalog(t *testing.T) {
	services := container.NewCollection()
	services.Provide(newFrench)
	services.Add(container.Describe(reflect.TypeFor[greeter](), reflect.TypeFor[*french](), container.LifetimeSingleton))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	g, err := container.ResolveShared[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", g.Greet())
}

func TestConstructor_InvalidFunctions(t *testing.T) {
	tests := []struct {
		name string
		ctor any
	}{
		{"not a function", 42},
		{"no result", func() {}},
		{"second result not error", func() (*commonService, int) { return nil, 0 }},
		{"variadic", func(...int) *commonService { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := container.NewCollection()
			services.Add(container.Singleton[*commonService](tt.ctor))
			_, err := container.Build[string](services)
			assert.ErrorIs(t, err, container.ErrInvalidConstructor)
		})
	}
}

// ── descriptor shape ──────────────────────────────────────────────────────────

func TestDescriptor_Validation(t *testing.T) {
	repos := container.NewGeneric("Repository", 1)
	tests := []struct {
		name       string
		descriptor *container.ServiceDescriptor
		want       error
	}{
		{"interface implementation",
			container.Describe(reflect.TypeFor[greeter](), reflect.TypeFor[greeter](), container.LifetimeSingleton),
			container.ErrTypeNotActivatable},
		{"open generic without implementation",
			container.DescribeGeneric(repos, nil, container.LifetimeSingleton),
			container.ErrOpenGenericImplementationMissing},
		{"arity mismatch",
			container.DescribeGeneric(repos, container.NewGeneric("pair", 2), container.LifetimeSingleton),
			container.ErrArityMismatch},
		{"nil factory",
			container.DescribeFactory(reflect.TypeFor[greeter](), container.LifetimeSingleton, nil),
			container.ErrInvalidDescriptor},
		{"constructor for another type",
			container.Describe(reflect.TypeFor[greeter](), reflect.TypeFor[*english](), container.LifetimeSingleton, newFrench),
			container.ErrInvalidConstructor},
		{"nil descriptor", nil, container.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := container.NewCollection()
			services.Add(tt.descriptor)
			_, err := container.Build[string](services)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDescriptor_ImplementationNotAssignable(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.Describe(reflect.TypeFor[greeter](), nil, container.LifetimeSingleton, newCommonService))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[greeter]())
	assert.ErrorIs(t, err, container.ErrImplementationNotAssignable)
}

func TestDescriptor_InstanceTypeMismatch(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.DescribeInstance(reflect.TypeFor[greeter](), 42))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = c.GetSharedService(reflect.TypeFor[greeter]())
	assert.ErrorIs(t, err, container.ErrConstantTypeMismatch)
}

func TestDescriptor_String(t *testing.T) {
	d := container.Singleton[greeter](newEnglish).Tenanted()
	assert.Equal(t, "tenanted singleton container_test.greeter => *container_test.english", d.String())
	assert.Equal(t, "type", d.Source())
	assert.Equal(t, "instance", container.Instance(42).Source())
}

// ── open generics ─────────────────────────────────────────────────────────────

func repositoryGenerics() (*container.Generic, *container.Generic) {
	repos := container.NewGeneric("Repository", 1).
		Close(reflect.TypeFor[Repository[user]](), reflect.TypeFor[user]()).
		Close(reflect.TypeFor[Repository[order]](), reflect.TypeFor[order]())
	memory := container.NewGeneric("memoryRepository", 1).
		Provide(newMemoryRepository[user], reflect.TypeFor[user]())
	return repos, memory
}

func TestGeneric_ClosesOverArguments(t *testing.T) {
	repos, memory := repositoryGenerics()
	services := container.NewCollection()
	services.Add(container.DescribeGeneric(repos, memory, container.LifetimeSingleton).Tenanted())
	c, err := container.Build[string](services)
	require.NoError(t, err)

	r, err := container.Resolve[Repository[user]](c, "acme")
	require.NoError(t, err)
	assert.Equal(t, "memory:user", r.Kind())
	assert.Same(t, r, container.MustResolve[Repository[user]](c, "acme"))
	assert.True(t, c.IsService("acme", reflect.TypeFor[Repository[user]]()))
	assert.False(t, c.IsSharedService(reflect.TypeFor[Repository[user]]()))

	_, err = container.Resolve[Repository[order]](c, "acme")
	assert.ErrorIs(t, err, container.ErrConstraintViolation)
}

func TestGeneric_Constraint(t *testing.T) {
	repos, memory := repositoryGenerics()
	memory.Provide(newMemoryRepository[order], reflect.TypeFor[order]())
	memory.Constrain(func(args []reflect.Type) error {
		if args[0] == reflect.TypeFor[order]() {
			return errors.New("orders are not kept in memory")
		}
		return nil
	})
	services := container.NewCollection()
	services.Add(container.DescribeGeneric(repos, memory, container.LifetimeScoped))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = container.ResolveShared[Repository[order]](c)
	require.ErrorIs(t, err, container.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "orders are not kept in memory")

	all, err := container.ResolveShared[[]Repository[order]](c)
	require.NoError(t, err)
	assert.Empty(t, all, "slice collection skips registrations that do not apply")
}

func TestGeneric_SliceInterleavesExactAndOpen(t *testing.T) {
	repos, memory := repositoryGenerics()
	services := container.NewCollection()
	services.Add(
		container.DescribeGeneric(repos, memory, container.LifetimeSingleton),
		container.Singleton[Repository[user]](func() *specialUserRepository { return &specialUserRepository{} }),
	)
	c, err := container.Build[string](services)
	require.NoError(t, err)

	all, err := container.ResolveShared[[]Repository[user]](c)
	require.NoError(t, err)
	kinds := make([]string, len(all))
	for i, r := range all {
		kinds[i] = r.Kind()
	}
	assert.Equal(t, []string{"memory:user", "special:user"}, kinds)

	direct, err := container.ResolveShared[Repository[user]](c)
	require.NoError(t, err)
	assert.Equal(t, "special:user", direct.Kind())
}

func TestGeneric_ProvideArityMismatch(t *testing.T) {
	repos := container.NewGeneric("Repository", 1).Close(reflect.TypeFor[Repository[user]](), reflect.TypeFor[user]())
	memory := container.NewGeneric("memoryRepository", 1).
		Provide(newMemoryRepository[user], reflect.TypeFor[user](), reflect.TypeFor[order]())
	services := container.NewCollection()
	services.Add(container.DescribeGeneric(repos, memory, container.LifetimeSingleton))

	_, err := container.Build[string](services)
	assert.ErrorIs(t, err, container.ErrArityMismatch)
	assert.Equal(t, "Repository[T]", repos.String())
	assert.Equal(t, "pair[T1, T2]", fmt.Sprint(container.NewGeneric("pair", 2)))
}
