package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-lang/seedsync/pkg/schema"
)

// Memory is an in-process Adapter keeping rows in insertion order. It backs
// the engine's own tests and is useful for dry runs.
type Memory struct {
	mu      sync.RWMutex
	schemas *schema.Registry
	rows    map[string][]*Entity
	joins   map[string][]joinRow
}

type joinRow struct {
	ownerFK  string
	targetFK string
	ownerID  interface{}
	targetID interface{}
}

// NewMemory creates an empty in-memory store over the given schemas
func NewMemory(schemas *schema.Registry) *Memory {
	return &Memory{
		schemas: schemas,
		rows:    make(map[string][]*Entity),
		joins:   make(map[string][]joinRow),
	}
}

// Count returns the number of stored rows for a resource
func (m *Memory) Count(resource string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[resource])
}

// All returns copies of all stored rows for a resource, in insertion order
func (m *Memory) All(resource string) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entity, 0, len(m.rows[resource]))
	for _, e := range m.rows[resource] {
		out = append(out, copyEntity(e))
	}
	return out
}

// FindBy implements Adapter
func (m *Memory) FindBy(ctx context.Context, resource string, criteria map[string]interface{}) (*Entity, error) {
	if _, ok := m.schemas.Get(resource); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.rows[resource] {
		if matchesAll(e.Attrs, criteria) {
			return copyEntity(e), nil
		}
	}
	return nil, nil
}

// Upsert implements Adapter
func (m *Memory) Upsert(ctx context.Context, existing *Entity, resource string, attrs map[string]interface{}) (*Entity, error) {
	res, ok := m.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	fieldAttrs, assocAttrs := splitAssociations(res, attrs)
	if ve := validateAttrs(res, fieldAttrs, existing == nil); ve != nil {
		return nil, ve
	}

	pk := res.PrimaryKeyFields()[0]

	m.mu.Lock()
	defer m.mu.Unlock()

	var row *Entity
	if existing == nil {
		rec := copyAttrs(fieldAttrs)
		for _, name := range res.PrimaryKeyFields() {
			f := res.Fields[name]
			if f != nil && f.Auto && rec[name] == nil {
				rec[name] = uuid.New().String()
			}
		}
		row = NewEntity(resource, pk, rec)
		m.rows[resource] = append(m.rows[resource], row)
	} else {
		row = m.findByIdentifier(resource, pk, existing.Identifier())
		if row == nil {
			return nil, fmt.Errorf("%w: %s %v", ErrNotFound, resource, existing.Identifier())
		}
		for k, v := range fieldAttrs {
			row.Attrs[k] = v
		}
	}

	out := copyEntity(row)
	for name, targets := range assocAttrs {
		assoc := res.Associations[name]
		switch assoc.Kind {
		case schema.AssociationManyToMany:
			m.replaceJoin(res, assoc, row.Attrs[pk], targets)
		case schema.AssociationHasMany:
			if err := m.adoptTargets(assoc, row.Attrs[pk], targets); err != nil {
				return nil, err
			}
		}
		out.Attrs[name] = targets
	}
	return out, nil
}

// adoptTargets points each target row's foreign key at the owner. This is how
// an entity list on a has_many association is applied; the key lives on the
// target, so there is no join state to replace. Caller holds the write lock.
func (m *Memory) adoptTargets(assoc *schema.Association, ownerID interface{}, targets []*Entity) error {
	target, ok := m.schemas.Get(assoc.Target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, assoc.Target)
	}
	targetPK := target.PrimaryKeyFields()[0]

	for _, t := range targets {
		row := m.findByIdentifier(assoc.Target, targetPK, t.Identifier())
		if row == nil {
			return fmt.Errorf("%w: %s %v", ErrNotFound, assoc.Target, t.Identifier())
		}
		row.Attrs[assoc.ForeignKey] = ownerID
	}
	return nil
}

// DeleteWhere implements Adapter
func (m *Memory) DeleteWhere(ctx context.Context, resource string, pred Predicate) ([]*Entity, error) {
	res, ok := m.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*Entity
	var deleted []*Entity
	for _, e := range m.rows[resource] {
		if pred.Matches(e.Attrs) {
			deleted = append(deleted, copyEntity(e))
		} else {
			kept = append(kept, e)
		}
	}
	m.rows[resource] = kept

	// Drop join rows owned by deleted entities
	for _, e := range deleted {
		for _, assoc := range res.Associations {
			if assoc.Kind != schema.AssociationManyToMany {
				continue
			}
			ownerFK := schema.ToSnakeCase(resource) + "_id"
			var remaining []joinRow
			for _, jr := range m.joins[assoc.JoinTable] {
				if jr.ownerFK == ownerFK && looseEqual(jr.ownerID, e.Identifier()) {
					continue
				}
				remaining = append(remaining, jr)
			}
			m.joins[assoc.JoinTable] = remaining
		}
	}
	return deleted, nil
}

// Preload implements Adapter
func (m *Memory) Preload(ctx context.Context, entity *Entity, associations []string) (*Entity, error) {
	res, ok := m.schemas.Get(entity.Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, entity.Resource)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := copyEntity(entity)
	for _, name := range associations {
		assoc, ok := res.Associations[name]
		if !ok {
			return nil, fmt.Errorf("resource %s has no association %s", entity.Resource, name)
		}
		loaded, err := m.loadAssociation(res, assoc, entity.Identifier())
		if err != nil {
			return nil, err
		}
		out.Attrs[name] = loaded
	}
	return out, nil
}

func (m *Memory) loadAssociation(res *schema.Resource, assoc *schema.Association, ownerID interface{}) ([]*Entity, error) {
	switch assoc.Kind {
	case schema.AssociationHasMany, schema.AssociationHasOne:
		var out []*Entity
		for _, e := range m.rows[assoc.Target] {
			if looseEqual(e.Attrs[assoc.ForeignKey], ownerID) {
				out = append(out, copyEntity(e))
			}
		}
		return out, nil
	case schema.AssociationManyToMany:
		target, ok := m.schemas.Get(assoc.Target)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, assoc.Target)
		}
		targetPK := target.PrimaryKeyFields()[0]
		ownerFK := schema.ToSnakeCase(res.Name) + "_id"
		var out []*Entity
		for _, jr := range m.joins[assoc.JoinTable] {
			if jr.ownerFK != ownerFK || !looseEqual(jr.ownerID, ownerID) {
				continue
			}
			for _, e := range m.rows[assoc.Target] {
				if looseEqual(e.Attrs[targetPK], jr.targetID) {
					out = append(out, copyEntity(e))
					break
				}
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("association %s is not multi-valued", assoc.Name)
	}
}

// replaceJoin swaps the join rows owned by ownerID for the given targets.
// Caller holds the write lock.
func (m *Memory) replaceJoin(res *schema.Resource, assoc *schema.Association, ownerID interface{}, targets []*Entity) {
	ownerFK := schema.ToSnakeCase(res.Name) + "_id"
	targetFK := schema.ToSnakeCase(assoc.Target) + "_id"

	var remaining []joinRow
	for _, jr := range m.joins[assoc.JoinTable] {
		if jr.ownerFK == ownerFK && looseEqual(jr.ownerID, ownerID) {
			continue
		}
		remaining = append(remaining, jr)
	}
	for _, t := range targets {
		remaining = append(remaining, joinRow{
			ownerFK:  ownerFK,
			targetFK: targetFK,
			ownerID:  ownerID,
			targetID: t.Identifier(),
		})
	}
	m.joins[assoc.JoinTable] = remaining
}

// findByIdentifier returns the stored row itself. Caller holds a lock.
func (m *Memory) findByIdentifier(resource, pk string, id interface{}) *Entity {
	for _, e := range m.rows[resource] {
		if looseEqual(e.Attrs[pk], id) {
			return e
		}
	}
	return nil
}

func matchesAll(attrs, criteria map[string]interface{}) bool {
	for k, v := range criteria {
		if !looseEqual(attrs[k], v) {
			return false
		}
	}
	return true
}

func copyEntity(e *Entity) *Entity {
	return NewEntity(e.Resource, e.key, copyAttrs(e.Attrs))
}
