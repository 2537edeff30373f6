package container

import "encoding/json"

// CallSiteRecord is a call-site tree flattened into plain data for logs and
// diagnostics. A node seen earlier in the same tree is rendered as a Ref to
// its service.
type CallSiteRecord struct {
	ServiceType        string            `json:"serviceType,omitempty"`
	Tenant             string            `json:"tenant,omitempty"`
	Kind               string            `json:"kind,omitempty"`
	Cache              string            `json:"cache,omitempty"`
	ImplementationType string            `json:"implementationType,omitempty"`
	Arguments          []*CallSiteRecord `json:"arguments,omitempty"`
	Items              []*CallSiteRecord `json:"items,omitempty"`
	Shared             *CallSiteRecord   `json:"shared,omitempty"`
	Ref                string            `json:"ref,omitempty"`
}

// DescribeCallSite flattens cs.
func DescribeCallSite(cs *CallSite) *CallSiteRecord {
	return describe(cs, make(map[*CallSite]bool))
}

func describe(cs *CallSite, seen map[*CallSite]bool) *CallSiteRecord {
	if seen[cs] {
		return &CallSiteRecord{Ref: typeName(cs.service.Type)}
	}
	seen[cs] = true
	r := &CallSiteRecord{
		ServiceType: typeName(cs.service.Type),
		Kind:        cs.kind.String(),
		Cache:       cs.cache.Location.String(),
	}
	if cs.service.Tenant != nil {
		r.Tenant = cs.service.Tenant.String()
	}
	if cs.implementation != nil {
		r.ImplementationType = cs.implementation.String()
	}
	switch cs.kind {
	case KindConstructor:
		for _, a := range cs.args {
			r.Arguments = append(r.Arguments, describe(a, seen))
		}
	case KindEnumerable:
		for _, item := range cs.items {
			r.Items = append(r.Items, describe(item, seen))
		}
	case KindTransposedShared:
		r.Shared = describe(cs.shared, seen)
	}
	return r
}

// FormatCallSite renders cs as compact JSON.
func FormatCallSite(cs *CallSite) string {
	b, err := json.Marshal(DescribeCallSite(cs))
	if err != nil {
		return "{}"
	}
	return string(b)
}
