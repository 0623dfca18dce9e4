package fixture

// FieldValue is the sealed union of interpreted record values. Everything
// else in a Record is a literal.
type FieldValue interface {
	fieldValue()
}

// RelationKind narrows how a Relation is applied to the parent record
type RelationKind int

const (
	// RelationAuto resolves the kind through the schema inspector
	RelationAuto RelationKind = iota
	// RelationBelongsTo sets the foreign key on the parent record
	RelationBelongsTo
	// RelationManyToMany collects the target into the association list
	RelationManyToMany
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case RelationAuto:
		return "auto"
	case RelationBelongsTo:
		return "belongs_to"
	case RelationManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// Relation means "sync the target fixture, then use one resulting entity".
// With no lookup the first produced entity is used; with a lookup the entity
// whose LookupField equals LookupValue is used.
type Relation struct {
	Fixture     *Fixture
	LookupField string
	LookupValue interface{}
	Kind        RelationKind
}

func (*Relation) fieldValue() {}

// RelationList is a multi-valued association: either the has_many shorthand
// (all-auto relations on a has_many field) or many_to_many contributions.
type RelationList []*Relation

func (RelationList) fieldValue() {}

// Nested means "sync these records after the parent, with the parent's
// identifier injected under ForeignKey". The source is either a fixture or an
// inline record list (Resource required when inline).
type Nested struct {
	Fixture    *Fixture
	Records    []Record
	Resource   string
	ForeignKey string
	SearchKeys []string
}

func (*Nested) fieldValue() {}

// Lookup is a direct store query bypassing fixture sync. Match values may
// themselves be lookups; inner lookups resolve first. The found entity's
// ExtractField (default: primary key) is stored under the record field.
type Lookup struct {
	Resource     string
	Match        map[string]interface{}
	ExtractField string
}

func (*Lookup) fieldValue() {}

// Rel references a fixture with auto-detected association kind
func Rel(f *Fixture) *Relation {
	return &Relation{Fixture: f}
}

// RelVia references a fixture, selecting the produced entity whose field
// equals value
func RelVia(f *Fixture, field string, value interface{}) *Relation {
	return &Relation{Fixture: f, LookupField: field, LookupValue: value}
}

// BelongsTo forces belongs_to handling for a relation
func BelongsTo(rel *Relation) *Relation {
	rel.Kind = RelationBelongsTo
	return rel
}

// ManyToMany forces many_to_many handling for a relation
func ManyToMany(rel *Relation) *Relation {
	rel.Kind = RelationManyToMany
	return rel
}

// Rels builds a RelationList
func Rels(rels ...*Relation) RelationList {
	return RelationList(rels)
}

// Children defers syncing the fixture's records until after the parent, with
// the parent identifier injected under the association's foreign key
func Children(f *Fixture) *Nested {
	return &Nested{Fixture: f}
}

// InlineChildren defers syncing an inline record list under the parent
func InlineChildren(resource, foreignKey string, records ...Record) *Nested {
	return &Nested{Resource: resource, ForeignKey: foreignKey, Records: records}
}

// Find looks up an entity by a single field match
func Find(resource, field string, value interface{}) *Lookup {
	return &Lookup{Resource: resource, Match: map[string]interface{}{field: value}}
}

// FindBy looks up an entity by a criteria mapping; values may be nested
// lookups
func FindBy(resource string, match map[string]interface{}) *Lookup {
	return &Lookup{Resource: resource, Match: match}
}

// Extract overrides the field extracted from the found entity
func (l *Lookup) Extract(field string) *Lookup {
	l.ExtractField = field
	return l
}
