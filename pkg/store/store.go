// Package store defines the persistence boundary of the sync engine: the
// Adapter contract plus an in-memory and a database/sql implementation. The
// orchestrator talks to the store exclusively through Adapter, so atomicity
// (wrapping a whole sync in one transaction) is an adapter concern.
package store

import "context"

// Entity is one persisted record of a resource
type Entity struct {
	Resource string
	Attrs    map[string]interface{}

	key string
}

// NewEntity creates an entity whose identifier is read from keyField
func NewEntity(resource, keyField string, attrs map[string]interface{}) *Entity {
	return &Entity{Resource: resource, Attrs: attrs, key: keyField}
}

// Identifier returns the entity's identifier value
func (e *Entity) Identifier() interface{} {
	return e.Attrs[e.key]
}

// KeyField returns the field name the identifier is read from
func (e *Entity) KeyField() string {
	return e.key
}

// Get returns a single attribute value
func (e *Entity) Get(field string) (interface{}, bool) {
	v, ok := e.Attrs[field]
	return v, ok
}

// Predicate restricts a DeleteWhere call. Pruning only needs "identifier not
// in set", so that is the whole contract.
type Predicate struct {
	Field string
	NotIn []interface{}
}

// Matches reports whether an attribute map satisfies the predicate
func (p Predicate) Matches(attrs map[string]interface{}) bool {
	v := attrs[p.Field]
	for _, excluded := range p.NotIn {
		if looseEqual(v, excluded) {
			return false
		}
	}
	return true
}

// Adapter is the store contract the sync engine depends on
type Adapter interface {
	// FindBy returns the first entity of the resource matching all criteria,
	// or (nil, nil) when none matches
	FindBy(ctx context.Context, resource string, criteria map[string]interface{}) (*Entity, error)

	// Upsert inserts a new entity when existing is nil, otherwise updates the
	// existing entity, applying attrs through the resource's validation path.
	// Many-to-many attributes arrive as []*Entity under the association field
	// and replace the association set.
	Upsert(ctx context.Context, existing *Entity, resource string, attrs map[string]interface{}) (*Entity, error)

	// DeleteWhere deletes every entity of the resource matching the predicate
	// and returns the deleted entities
	DeleteWhere(ctx context.Context, resource string, pred Predicate) ([]*Entity, error)

	// Preload loads the named associations onto the entity so a subsequent
	// association replacement has a base state to diff against
	Preload(ctx context.Context, entity *Entity, associations []string) (*Entity, error)
}
