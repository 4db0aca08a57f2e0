package sources

import (
	"fmt"
)

// Registry is the immutable id-keyed set of configured sources.
type Registry struct {
	byID  map[string]*Source
	order []string
}

// NewRegistry builds a registry; duplicate ids are a configuration error.
func NewRegistry(srcs ...Source) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]*Source, len(srcs)),
		order: make([]string, 0, len(srcs)),
	}

	for i := range srcs {
		src := srcs[i]
		if _, exists := r.byID[src.ID]; exists {
			return nil, &ConfigError{SourceID: src.ID, Field: "id", Err: fmt.Errorf("%w: duplicate id", ErrInvalidSource)}
		}
		r.byID[src.ID] = &src
		r.order = append(r.order, src.ID)
	}

	return r, nil
}

// Get returns the source with the given id or a ConfigError matching ErrUnknownSource.
func (r *Registry) Get(id string) (*Source, error) {
	src, ok := r.byID[id]
	if !ok {
		return nil, &ConfigError{SourceID: id, Err: ErrUnknownSource}
	}
	return src, nil
}

// IDs returns source ids in configuration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// All returns sources in configuration order.
func (r *Registry) All() []*Source {
	all := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.byID[id])
	}
	return all
}

// Len returns the number of configured sources.
func (r *Registry) Len() int {
	return len(r.order)
}
