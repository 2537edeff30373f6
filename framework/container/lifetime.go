package container

// ── Lifetime ──────────────────────────────────────────────────────────────────

// Lifetime controls how long a resolved value is reused.
//
//	// Laravel: $app->singleton(...) / $app->scoped(...) / $app->bind(...)
type Lifetime int

const (
	// LifetimeSingleton values are built once per container (once per tenant for
	// tenanted registrations) and owned by the root scope.
	LifetimeSingleton Lifetime = iota
	// LifetimeScoped values are built once per scope.
	LifetimeScoped
	// LifetimeTransient values are built on every resolution.
	LifetimeTransient
)

func (l Lifetime) String() string {
	switch l {
	case LifetimeSingleton:
		return "singleton"
	case LifetimeScoped:
		return "scoped"
	case LifetimeTransient:
		return "transient"
	}
	return "unknown"
}

// ── Tenancy ───────────────────────────────────────────────────────────────────

// Tenancy tells whether a registration is shared by every tenant or built
// separately for each one.
type Tenancy int

const (
	// Shared registrations resolve to the same value for all tenants.
	Shared Tenancy = iota
	// Tenanted registrations are isolated per tenant key.
	Tenanted
)

func (t Tenancy) String() string {
	if t == Tenanted {
		return "tenanted"
	}
	return "shared"
}

// ── Cache location ────────────────────────────────────────────────────────────

// CacheLocation is where a call-site memoizes the value it produces. Values
// are ordered from least to most sticky.
type CacheLocation int

const (
	// CacheNone never memoizes.
	CacheNone CacheLocation = iota
	// CacheDispose builds every time but hands the value to the scope for disposal.
	CacheDispose
	// CacheScope memoizes per scope.
	CacheScope
	// CacheRoot memoizes once for the whole container.
	CacheRoot
)

func (l CacheLocation) String() string {
	switch l {
	case CacheNone:
		return "none"
	case CacheDispose:
		return "dispose"
	case CacheScope:
		return "scope"
	case CacheRoot:
		return "root"
	}
	return "unknown"
}

// leastSticky returns the location that memoizes less of the two.
func leastSticky(a, b CacheLocation) CacheLocation {
	if a < b {
		return a
	}
	return b
}

// ResultCache is the caching policy fixed on a call-site at construction.
type ResultCache struct {
	Location CacheLocation
	key      cacheKey
}

func newResultCache(lifetime Lifetime, id ServiceIdentifier, slot Slot) ResultCache {
	loc := CacheNone
	switch lifetime {
	case LifetimeSingleton:
		loc = CacheRoot
	case LifetimeScoped:
		loc = CacheScope
	case LifetimeTransient:
		loc = CacheDispose
	}
	return ResultCache{Location: loc, key: cacheKey{id: id, slot: slot}}
}

var noCache = ResultCache{Location: CacheNone}
