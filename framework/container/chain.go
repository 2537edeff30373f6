package container

import (
	"reflect"
	"slices"
	"strings"
)

// callSiteChain is the path of identifiers being built by one graph
// construction, used to detect cycles.
type callSiteChain struct {
	entries map[ServiceIdentifier]chainEntry
}

type chainEntry struct {
	order          int
	implementation reflect.Type
}

func newCallSiteChain() *callSiteChain {
	return &callSiteChain{entries: make(map[ServiceIdentifier]chainEntry)}
}

func (c *callSiteChain) checkCircular(id ServiceIdentifier) error {
	if _, ok := c.entries[id]; !ok {
		return nil
	}
	e := newError(ErrCircularDependency, id,
		"a circular dependency was detected for service %s: %s", id, c.render(id))
	e.Path = append(c.path(), id)
	return e
}

func (c *callSiteChain) add(id ServiceIdentifier, implementation reflect.Type) {
	c.entries[id] = chainEntry{order: len(c.entries), implementation: implementation}
}

func (c *callSiteChain) remove(id ServiceIdentifier) {
	delete(c.entries, id)
}

// path returns the identifiers on the chain in build order.
func (c *callSiteChain) path() []ServiceIdentifier {
	ids := make([]ServiceIdentifier, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ServiceIdentifier) int {
		return c.entries[a].order - c.entries[b].order
	})
	return ids
}

// render draws the chain as "A(AImpl) -> B -> current".
func (c *callSiteChain) render(current ServiceIdentifier) string {
	var b strings.Builder
	for _, id := range c.path() {
		b.WriteString(id.String())
		if impl := c.entries[id].implementation; impl != nil && impl != id.Type {
			b.WriteString("(" + impl.String() + ")")
		}
		b.WriteString(" -> ")
	}
	b.WriteString(current.String())
	return b.String()
}
