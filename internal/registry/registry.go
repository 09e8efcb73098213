package registry

import (
	"slices"
	"sync"
)

// Registry holds the category and subcategory labels seen so far. It only
// biases future classification prompts; it never enforces a taxonomy, is not
// persisted, and starts from the seed set on every process start.
type Registry struct {
	mu            sync.Mutex
	categories    []string
	subcategories []string
}

// Snapshot is a point-in-time copy of the registry contents.
type Snapshot struct {
	Categories    []string
	Subcategories []string
}

// New returns a Registry seeded with the default label set.
func New() *Registry {
	return &Registry{
		categories: []string{"Credit card"},
		subcategories: []string{
			"Store credit card",
			"General-purpose credit card or charge card",
		},
	}
}

// NewEmpty returns a Registry with no seed labels. Used by tests.
func NewEmpty() *Registry {
	return &Registry{}
}

// Snapshot returns a copy of the current label sets.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Categories:    slices.Clone(r.categories),
		Subcategories: slices.Clone(r.subcategories),
	}
}

// Record notes labels produced by a classification. A novel category is
// appended; otherwise a novel subcategory is appended. The two checks are
// deliberately exclusive: a new subcategory is only recorded when the
// category was already known.
func (r *Registry) Record(category, subcategory string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category != "" && !slices.Contains(r.categories, category) {
		r.categories = append(r.categories, category)
	} else if subcategory != "" && !slices.Contains(r.subcategories, subcategory) {
		r.subcategories = append(r.subcategories, subcategory)
	}
}
