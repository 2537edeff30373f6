package container

import (
	"hash/maphash"
	"strings"
	"sync"
)

// Comparer defines tenant-key equality when == is not the right notion.
// Keys that are Equal must have the same Hash.
type Comparer[K any] interface {
	Equal(a, b K) bool
	Hash(k K) uint64
}

// FoldCase compares string tenant keys case-insensitively.
func FoldCase() Comparer[string] {
	return foldCase{seed: maphash.MakeSeed()}
}

type foldCase struct{ seed maphash.Seed }

func (f foldCase) Equal(a, b string) bool { return strings.EqualFold(a, b) }
func (f foldCase) Hash(k string) uint64   { return maphash.String(f.seed, strings.ToLower(k)) }

// TenantKeyAccessor tells a tenanted service which tenant it was built for.
// Depend on it from a constructor:
//
//	func NewSettings(tenant container.TenantKeyAccessor[string]) *Settings {
//	    return loadSettings(tenant.TenantKey())
//	}
type TenantKeyAccessor[K comparable] interface {
	TenantKey() K
}

type tenantKeyAccessor[K comparable] struct{ key K }

func (a tenantKeyAccessor[K]) TenantKey() K { return a.key }

// tenantKeys interns tenant keys into identifiers. It lives as long as the
// container and never forgets a tenant.
type tenantKeys[K comparable] struct {
	comparer Comparer[K]

	mu     sync.RWMutex
	byKey  map[K]*TenantIdentifier
	byHash map[uint64][]*TenantIdentifier

	validation *TenantIdentifier
}

func newTenantKeys[K comparable](comparer Comparer[K]) *tenantKeys[K] {
	var zero K
	return &tenantKeys[K]{
		comparer: comparer,
		byKey:    make(map[K]*TenantIdentifier),
		byHash:   make(map[uint64][]*TenantIdentifier),
		validation: &TenantIdentifier{
			key:      zero,
			accessor: tenantKeyAccessor[K]{key: zero},
			label:    "<validation>",
		},
	}
}

// get returns the identifier for key, minting it on first sight.
func (t *tenantKeys[K]) get(key K) *TenantIdentifier {
	if t.comparer == nil {
		t.mu.RLock()
		id, ok := t.byKey[key]
		t.mu.RUnlock()
		if ok {
			return id
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if id, ok := t.byKey[key]; ok {
			return id
		}
		id = t.mint(key)
		t.byKey[key] = id
		return id
	}

	h := t.comparer.Hash(key)
	t.mu.RLock()
	id := t.find(h, key)
	t.mu.RUnlock()
	if id != nil {
		return id
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id := t.find(h, key); id != nil {
		return id
	}
	id = t.mint(key)
	t.byHash[h] = append(t.byHash[h], id)
	return id
}

func (t *tenantKeys[K]) find(h uint64, key K) *TenantIdentifier {
	for _, id := range t.byHash[h] {
		if t.comparer.Equal(id.key.(K), key) {
			return id
		}
	}
	return nil
}

func (t *tenantKeys[K]) mint(key K) *TenantIdentifier {
	return &TenantIdentifier{key: key, accessor: tenantKeyAccessor[K]{key: key}}
}

// len is the number of tenants seen so far.
func (t *tenantKeys[K]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.byKey)
	for _, ids := range t.byHash {
		n += len(ids)
	}
	return n
}
