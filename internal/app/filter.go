package app

import "strings"

// Filter decides which entities are forwarded. Include entries are entity
// ids or bare domains; an empty include set matches everything. Exclude
// entries are entity ids and always take precedence. A non-matching event is
// dropped before any serialization or I/O.
type Filter struct {
	include []string
	exclude map[string]struct{}
}

// NewFilter builds a filter from the configured include and exclude lists.
func NewFilter(include, exclude []string) *Filter {
	f := &Filter{exclude: make(map[string]struct{}, len(exclude))}
	for _, in := range include {
		if in != "" {
			f.include = append(f.include, in)
		}
	}
	for _, ex := range exclude {
		if ex != "" {
			f.exclude[ex] = struct{}{}
		}
	}
	return f
}

// Match reports whether the full entity id ("domain.object_id") passes.
func (f *Filter) Match(entityID string) bool {
	if _, excluded := f.exclude[entityID]; excluded {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	domain := entityID
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		domain = entityID[:i]
	}
	for _, in := range f.include {
		if in == entityID || in == domain {
			return true
		}
	}
	return false
}
