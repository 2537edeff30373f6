// Package app is a small multi-tenant greeting service built on the
// framework: every tenant gets its own profile, visit counter and greeter,
// while the clock and the tenant directory are shared.
package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/km-arc/go-tenancy/framework/container"
)

// Clock is shared by every tenant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func newSystemClock() *systemClock { return &systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// ── Directory ─────────────────────────────────────────────────────────────────

// Directory knows the language of each tenant.
type Directory struct {
	mu        sync.RWMutex
	languages map[string]string
}

func NewDirectory() *Directory {
	return &Directory{languages: map[string]string{
		"acme":    "en",
		"globex":  "fr",
		"initech": "de",
	}}
}

// Language returns the tenant's language, "en" when unknown.
func (d *Directory) Language(tenant string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if lang, ok := d.languages[tenant]; ok {
		return lang
	}
	return "en"
}

func (d *Directory) Set(tenant, language string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.languages[tenant] = language
}

// ── Tenant-scoped services ────────────────────────────────────────────────────

// Tenant is the profile of the tenant a value was built for.
type Tenant struct {
	Key      string    `json:"key"`
	Language string    `json:"language"`
	Since    time.Time `json:"since"`
}

func NewTenant(key container.TenantKeyAccessor[string], dir *Directory, clock Clock) *Tenant {
	return &Tenant{Key: key.TenantKey(), Language: dir.Language(key.TenantKey()), Since: clock.Now()}
}

// Visits counts greetings of one tenant.
type Visits struct{ n atomic.Int64 }

func NewVisits() *Visits { return &Visits{} }

func (v *Visits) Inc() int64 { return v.n.Add(1) }

// Audit collects what one request did and reports it when the request scope
// is closed.
type Audit struct {
	tenant  *Tenant
	log     logr.Logger
	clock   Clock
	started time.Time
	entries []string
}

func NewAudit(tenant *Tenant, log logr.Logger, clock Clock) *Audit {
	return &Audit{tenant: tenant, log: log, clock: clock, started: clock.Now()}
}

func (a *Audit) Record(format string, args ...any) {
	a.entries = append(a.entries, fmt.Sprintf(format, args...))
}

func (a *Audit) Entries() []string { return a.entries }

func (a *Audit) Close() error {
	a.log.V(1).Info("Request audited",
		"tenant", a.tenant.Key,
		"entries", a.entries,
		"duration", a.clock.Now().Sub(a.started))
	return nil
}

// ── Greeter ───────────────────────────────────────────────────────────────────

// Greeter says hello in the tenant's language.
type Greeter interface {
	Greet(name string) string
}

type phrase string

func (p phrase) Greet(name string) string { return fmt.Sprintf(string(p), name) }

var phrases = map[string]phrase{
	"en": "Hello, %s!",
	"fr": "Bonjour, %s !",
	"de": "Hallo, %s!",
}

// newGreeter picks the phrase for the requesting tenant.
func newGreeter(sp container.ServiceProvider) (Greeter, error) {
	tenant, err := container.Get[*Tenant](sp)
	if err != nil {
		return nil, err
	}
	p, ok := phrases[tenant.Language]
	if !ok {
		return nil, fmt.Errorf("no greeting for language %q", tenant.Language)
	}
	return p, nil
}
