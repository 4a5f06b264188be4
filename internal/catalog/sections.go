package catalog

import (
	"bitwise74/course-archive/internal/model"
	"slices"
	"strings"
)

type Section struct {
	Type      string           `json:"type"`
	Resources []model.Resource `json:"resources"`
}

// Group buckets resources by type. Known types come first in their fixed
// order, the rest follow alphabetically. Resources keep their relative order.
func Group(resources []model.Resource) []Section {
	buckets := make(map[string][]model.Resource)
	for _, r := range resources {
		t := strings.TrimSpace(r.Type)
		if t == "" {
			t = model.TypeOther
		}

		buckets[t] = append(buckets[t], r)
	}

	types := make([]string, 0, len(buckets))
	for t := range buckets {
		types = append(types, t)
	}

	slices.SortFunc(types, func(a, b string) int {
		ia := slices.Index(model.KnownTypes, a)
		ib := slices.Index(model.KnownTypes, b)

		switch {
		case ia != -1 && ib != -1:
			return ia - ib
		case ia != -1:
			return -1
		case ib != -1:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})

	sections := make([]Section, 0, len(types))
	for _, t := range types {
		sections = append(sections, Section{Type: t, Resources: buckets[t]})
	}

	return sections
}
