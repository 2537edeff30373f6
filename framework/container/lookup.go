package container

import "reflect"

// descriptorEntry is a registration placed in one bucket of the partition.
type descriptorEntry struct {
	descriptor *ServiceDescriptor
	slot       Slot
	// shared is set on tenanted entries that forward to a shared
	// registration; its slot is the shared slot to resolve.
	shared *descriptorEntry
}

func (e *descriptorEntry) transposed() bool { return e.shared != nil }

// descriptorBucket holds the registrations visible to one kind of request.
type descriptorBucket struct {
	byKey    map[any][]*descriptorEntry
	byDesc   map[*ServiceDescriptor]*descriptorEntry
	generics []*Generic
	ordered  []*descriptorEntry
}

func newDescriptorBucket() *descriptorBucket {
	return &descriptorBucket{
		byKey:  make(map[any][]*descriptorEntry),
		byDesc: make(map[*ServiceDescriptor]*descriptorEntry),
	}
}

func (b *descriptorBucket) add(e *descriptorEntry) {
	key := e.descriptor.key()
	if g, ok := key.(*Generic); ok && len(b.byKey[key]) == 0 {
		b.generics = append(b.generics, g)
	}
	b.byKey[key] = append(b.byKey[key], e)
	b.byDesc[e.descriptor] = e
	b.ordered = append(b.ordered, e)
}

// finalize assigns slots: the last entry of each key gets 0.
func (b *descriptorBucket) finalize() {
	for _, entries := range b.byKey {
		for i, e := range entries {
			e.slot = Slot(len(entries) - 1 - i)
		}
	}
}

func (b *descriptorBucket) entries(key any) []*descriptorEntry { return b.byKey[key] }

func (b *descriptorBucket) last(key any) *descriptorEntry {
	entries := b.byKey[key]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// closing finds the most recently registered open generic service that t
// is an instance of.
func (b *descriptorBucket) closing(t reflect.Type) (*Generic, []reflect.Type) {
	for i := len(b.generics) - 1; i >= 0; i-- {
		if args, ok := b.generics[i].arguments(t); ok {
			return b.generics[i], args
		}
	}
	return nil, nil
}

func (b *descriptorBucket) contains(t reflect.Type) bool {
	if len(b.byKey[t]) > 0 {
		return true
	}
	g, _ := b.closing(t)
	return g != nil
}

// descriptorLookup partitions registrations. Every descriptor lands in the
// tenanted bucket; shared ones also land in the shared bucket, and their
// tenanted entry forwards to it.
type descriptorLookup struct {
	descriptors []*ServiceDescriptor
	shared      *descriptorBucket
	tenanted    *descriptorBucket
}

func newDescriptorLookup(descriptors []*ServiceDescriptor) (*descriptorLookup, error) {
	l := &descriptorLookup{
		descriptors: descriptors,
		shared:      newDescriptorBucket(),
		tenanted:    newDescriptorBucket(),
	}
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		tenanted := &descriptorEntry{descriptor: d}
		if d.IsShared() {
			shared := &descriptorEntry{descriptor: d}
			l.shared.add(shared)
			tenanted.shared = shared
		}
		l.tenanted.add(tenanted)
	}
	l.shared.finalize()
	l.tenanted.finalize()
	return l, nil
}

func (l *descriptorLookup) bucket(tenant *TenantIdentifier) *descriptorBucket {
	if tenant == nil {
		return l.shared
	}
	return l.tenanted
}
