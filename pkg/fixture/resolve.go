package fixture

import (
	"context"

	"github.com/conduit-lang/seedsync/pkg/schema"
	"github.com/conduit-lang/seedsync/pkg/store"
)

// deferral is a nested child sync postponed until after the parent record is
// persisted
type deferral struct {
	field  string
	nested *Nested
}

// resolveRecord converts one raw record into flat attributes plus deferred
// child syncs. Resolution is fail-fast: the first failing field aborts the
// record, though fixtures already synced for earlier fields stay persisted.
func (s *Syncer) resolveRecord(ctx context.Context, resource string, rec Record) (map[string]interface{}, []deferral, error) {
	attrs := make(map[string]interface{}, len(rec))
	var deferred []deferral

	for _, field := range sortedFields(rec) {
		switch v := rec[field].(type) {
		case *Relation:
			d, err := s.resolveRelation(ctx, resource, field, v, attrs)
			if err != nil {
				return nil, nil, err
			}
			if d != nil {
				deferred = append(deferred, *d)
			}
		case RelationList:
			d, err := s.resolveRelationList(ctx, resource, field, v, attrs)
			if err != nil {
				return nil, nil, err
			}
			if d != nil {
				deferred = append(deferred, *d)
			}
		case *Nested:
			deferred = append(deferred, deferral{field: field, nested: v})
		case *Lookup:
			value, err := s.resolveLookup(ctx, v)
			if err != nil {
				return nil, nil, err
			}
			attrs[field] = value
		default:
			attrs[field] = v
		}
	}
	return attrs, deferred, nil
}

// resolveRelation applies a single relation to the attributes, or returns a
// deferral when the schema says the field is a to-many child association
func (s *Syncer) resolveRelation(ctx context.Context, resource, field string, rel *Relation, attrs map[string]interface{}) (*deferral, error) {
	kind := rel.Kind
	if kind == RelationAuto {
		switch s.schemas.AssociationKind(resource, field) {
		case schema.AssociationHasMany, schema.AssociationHasOne:
			return &deferral{field: field, nested: &Nested{
				Fixture:    rel.Fixture,
				ForeignKey: s.schemas.ForeignKeyField(resource, field),
			}}, nil
		case schema.AssociationManyToMany:
			kind = RelationManyToMany
		default:
			// belongs_to, or a field the schema knows nothing about
			kind = RelationBelongsTo
		}
	}

	selected, err := s.selectRelated(ctx, field, rel)
	if err != nil {
		return nil, err
	}
	if kind == RelationManyToMany {
		appendAssociation(attrs, field, selected)
	} else {
		attrs[field+"_id"] = selected.Identifier()
	}
	return nil, nil
}

// resolveRelationList handles the multi-valued forms: the has_many shorthand
// (all-auto relations to one fixture on a has_many field) becomes a single
// deferral, everything else resolves as many_to_many contributions
func (s *Syncer) resolveRelationList(ctx context.Context, resource, field string, rels RelationList, attrs map[string]interface{}) (*deferral, error) {
	if s.schemas.AssociationKind(resource, field) == schema.AssociationHasMany {
		if f := sharedAutoFixture(rels); f != nil {
			return &deferral{field: field, nested: &Nested{
				Fixture:    f,
				ForeignKey: s.schemas.ForeignKeyField(resource, field),
			}}, nil
		}
	}

	for _, rel := range rels {
		selected, err := s.selectRelated(ctx, field, rel)
		if err != nil {
			return nil, err
		}
		appendAssociation(attrs, field, selected)
	}
	return nil, nil
}

// selectRelated syncs the relation's fixture and picks one resulting entity:
// the lookup match when a lookup is given, otherwise the first entity in
// producer order
func (s *Syncer) selectRelated(ctx context.Context, field string, rel *Relation) (*store.Entity, error) {
	result, err := s.Sync(ctx, rel.Fixture, Options{})
	if err != nil {
		return nil, err
	}
	entities := result.Entities()

	if rel.LookupField == "" {
		if len(entities) == 0 {
			return nil, &RelationNotFoundError{Field: field, Value: nil}
		}
		return entities[0], nil
	}
	for _, e := range entities {
		if valuesEqual(e.Attrs[rel.LookupField], rel.LookupValue) {
			return e, nil
		}
	}
	return nil, &RelationNotFoundError{Field: field, Value: rel.LookupValue}
}

// resolveLookup queries the store directly, resolving nested lookups in the
// match criteria innermost-first
func (s *Syncer) resolveLookup(ctx context.Context, l *Lookup) (interface{}, error) {
	criteria := make(map[string]interface{}, len(l.Match))
	for k, v := range l.Match {
		if inner, ok := v.(*Lookup); ok {
			resolved, err := s.resolveLookup(ctx, inner)
			if err != nil {
				return nil, err
			}
			criteria[k] = resolved
		} else {
			criteria[k] = v
		}
	}

	entity, err := s.store.FindBy(ctx, l.Resource, criteria)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &LookupNotFoundError{Resource: l.Resource, Criteria: criteria}
	}

	field := l.ExtractField
	if field == "" {
		pks, err := s.schemas.PrimaryKeyFields(l.Resource)
		if err != nil {
			return nil, err
		}
		field = pks[0]
	}
	return entity.Attrs[field], nil
}

// appendAssociation merges a many_to_many contribution with any sibling
// entries already collected under the same field
func appendAssociation(attrs map[string]interface{}, field string, entity *store.Entity) {
	list, _ := attrs[field].([]*store.Entity)
	attrs[field] = append(list, entity)
}

// sharedAutoFixture returns the single fixture every auto-kind relation in
// the list points at, or nil when kinds are explicit or fixtures differ
func sharedAutoFixture(rels RelationList) *Fixture {
	var shared *Fixture
	for _, rel := range rels {
		if rel.Kind != RelationAuto || rel.Fixture == nil {
			return nil
		}
		if shared == nil {
			shared = rel.Fixture
		} else if shared != rel.Fixture {
			return nil
		}
	}
	return shared
}
