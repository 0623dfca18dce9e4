package schema

import (
	"fmt"
	"sync"
)

// Inspector is the capability the resolver and store adapters use to reason
// about resource schemas. Registry implements it; tests may substitute their
// own implementation.
type Inspector interface {
	// PrimaryKeyFields returns the primary key field names of a resource
	PrimaryKeyFields(resource string) ([]string, error)

	// AssociationKind reports the kind of association a field declares, or
	// AssociationNone when the field is unknown or not an association
	AssociationKind(resource, field string) AssociationKind

	// ForeignKeyField returns the foreign key field of a to-many association,
	// or "" when the field is not a to-many association
	ForeignKeyField(resource, field string) string

	// DeclaredAssociations returns the association field names of a resource
	DeclaredAssociations(resource string) []string
}

// Registry manages all resource schemas known to a sync run
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewRegistry creates an empty schema registry
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*Resource)}
}

// Register registers a resource schema. Registering the same resource name
// twice is an error.
func (r *Registry) Register(res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[res.Name]; exists {
		return fmt.Errorf("resource %s is already registered", res.Name)
	}
	r.resources[res.Name] = res
	return nil
}

// MustRegister registers a resource schema and panics on duplicates. Intended
// for static schema declarations.
func (r *Registry) MustRegister(res *Resource) *Registry {
	if err := r.Register(res); err != nil {
		panic(err)
	}
	return r
}

// Get retrieves a resource schema by name
func (r *Registry) Get(name string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[name]
	return res, ok
}

// Names returns a list of all registered resource names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered resources
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.resources)
}

// Clear removes all registered resources (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resources = make(map[string]*Resource)
}

// PrimaryKeyFields implements Inspector
func (r *Registry) PrimaryKeyFields(resource string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[resource]
	if !ok {
		return nil, fmt.Errorf("resource %s not found", resource)
	}
	return res.PrimaryKeyFields(), nil
}

// AssociationKind implements Inspector
func (r *Registry) AssociationKind(resource, field string) AssociationKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[resource]
	if !ok {
		return AssociationNone
	}
	assoc, ok := res.Associations[field]
	if !ok {
		return AssociationNone
	}
	return assoc.Kind
}

// ForeignKeyField implements Inspector
func (r *Registry) ForeignKeyField(resource, field string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[resource]
	if !ok {
		return ""
	}
	assoc, ok := res.Associations[field]
	if !ok {
		return ""
	}
	switch assoc.Kind {
	case AssociationHasOne, AssociationHasMany:
		return assoc.ForeignKey
	default:
		return ""
	}
}

// DeclaredAssociations implements Inspector
func (r *Registry) DeclaredAssociations(resource string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[resource]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(res.Associations))
	for name := range res.Associations {
		names = append(names, name)
	}
	return names
}
