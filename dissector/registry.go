package dissector

import (
	"errors"
	"fmt"
	"slices"
)

var ErrDuplicate = errors.New("dissector already registered")

// Registry is the append-only dissector catalog. It is filled during
// startup and only read once a run begins; it does no locking.
type Registry struct {
	bySlug  map[string]*Dissector
	ordered []*Dissector
}

func NewRegistry() *Registry {
	return &Registry{bySlug: make(map[string]*Dissector)}
}

// Register appends d to the catalog.
func (r *Registry) Register(d *Dissector) error {
	if d == nil {
		return errors.New("nil dissector")
	}
	if _, ok := r.bySlug[d.slug]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.slug)
	}
	r.bySlug[d.slug] = d
	r.ordered = append(r.ordered, d)
	return nil
}

// MustRegister is Register for compiled-in dissectors, where a duplicate
// slug is a bug.
func (r *Registry) MustRegister(d *Dissector) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// All returns every dissector in registration order.
func (r *Registry) All() []*Dissector {
	return slices.Clone(r.ordered)
}

func (r *Registry) Lookup(slug string) (*Dissector, bool) {
	d, ok := r.bySlug[slug]
	return d, ok
}

func (r *Registry) Len() int { return len(r.ordered) }
