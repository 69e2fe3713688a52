package opguide

import (
	"maps"
	"slices"

	"opguide/internal/domain"
)

// Groups maps a resource type to the resources of that type in input order.
// Resources without a type are kept under the empty string key.
type Groups map[string][]domain.Resource

// GroupByType partitions resources by type. No resource is dropped or
// duplicated.
func GroupByType(resources []domain.Resource) Groups {
	groups := make(Groups)
	for _, r := range resources {
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}

// Types returns the group keys in processing order.
func (g Groups) Types() []string {
	return slices.Sorted(maps.Keys(g))
}

// Restrict returns the groups whose type is in types. Unknown types are
// ignored.
func (g Groups) Restrict(types []string) Groups {
	restricted := make(Groups, len(types))
	for _, t := range types {
		if rs, ok := g[t]; ok {
			restricted[t] = rs
		}
	}
	return restricted
}

// Len returns the number of resources across all groups.
func (g Groups) Len() int {
	n := 0
	for _, rs := range g {
		n += len(rs)
	}
	return n
}

// DistinctTypes returns the sorted set of types present in resources.
func DistinctTypes(resources []domain.Resource) []string {
	return GroupByType(resources).Types()
}
