// Package schema defines resource schemas for the sync engine: fields,
// association kinds, and foreign-key conventions. The resolver and store
// adapters consume schemas only through the Inspector interface, never by
// inspecting concrete types directly.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// AssociationKind represents the kind of association between two resources
type AssociationKind int

const (
	// AssociationNone means the field is not an association
	AssociationNone AssociationKind = iota
	// AssociationBelongsTo holds the foreign key on the owning resource
	AssociationBelongsTo
	// AssociationHasOne holds the foreign key on the target resource
	AssociationHasOne
	// AssociationHasMany holds the foreign key on the target resource
	AssociationHasMany
	// AssociationManyToMany joins both resources through a join table
	AssociationManyToMany
)

// String returns the string representation of the association kind
func (k AssociationKind) String() string {
	switch k {
	case AssociationNone:
		return "none"
	case AssociationBelongsTo:
		return "belongs_to"
	case AssociationHasOne:
		return "has_one"
	case AssociationHasMany:
		return "has_many"
	case AssociationManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseAssociationKind converts a string to an AssociationKind
func ParseAssociationKind(s string) (AssociationKind, error) {
	switch s {
	case "none":
		return AssociationNone, nil
	case "belongs_to":
		return AssociationBelongsTo, nil
	case "has_one":
		return AssociationHasOne, nil
	case "has_many":
		return AssociationHasMany, nil
	case "many_to_many":
		return AssociationManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown association kind: %s", s)
	}
}

// ToMany returns true if the association can hold more than one target entity
func (k AssociationKind) ToMany() bool {
	return k == AssociationHasMany || k == AssociationManyToMany
}

// Field represents a field in a resource schema
type Field struct {
	Name     string
	Primary  bool
	Auto     bool // auto-generated on insert when absent
	Required bool
}

// Association represents an association declared on a resource
type Association struct {
	Name   string
	Kind   AssociationKind
	Target string

	// ForeignKey is the field on the target (has_one/has_many) or owner
	// (belongs_to) holding the reference. Defaulted at registration.
	ForeignKey string

	// JoinTable is the join table for many_to_many. Defaulted at registration.
	JoinTable string
}

// Resource represents the complete schema for one resource
type Resource struct {
	Name         string
	Table        string
	Fields       map[string]*Field
	Associations map[string]*Association
}

// NewResource creates a resource schema with the conventional table name
func NewResource(name string) *Resource {
	return &Resource{
		Name:         name,
		Table:        Pluralize(ToSnakeCase(name)),
		Fields:       make(map[string]*Field),
		Associations: make(map[string]*Association),
	}
}

// AddField adds a field to the resource and returns the resource for chaining
func (r *Resource) AddField(f *Field) *Resource {
	r.Fields[f.Name] = f
	return r
}

// AddAssociation adds an association, filling in conventional defaults for
// the foreign key and join table
func (r *Resource) AddAssociation(a *Association) *Resource {
	if a.ForeignKey == "" {
		switch a.Kind {
		case AssociationBelongsTo:
			a.ForeignKey = a.Name + "_id"
		case AssociationHasOne, AssociationHasMany:
			a.ForeignKey = ToSnakeCase(r.Name) + "_id"
		}
	}
	if a.JoinTable == "" && a.Kind == AssociationManyToMany {
		a.JoinTable = JoinTableName(r.Name, a.Target)
	}
	r.Associations[a.Name] = a
	return r
}

// PrimaryKeyFields returns the names of the primary key fields in sorted
// order, falling back to "id" when no field is marked primary
func (r *Resource) PrimaryKeyFields() []string {
	var keys []string
	for name, f := range r.Fields {
		if f.Primary {
			keys = append(keys, name)
		}
	}
	if len(keys) == 0 {
		return []string{"id"}
	}
	sort.Strings(keys)
	return keys
}

// HasField returns true if the resource declares a field with the given name
func (r *Resource) HasField(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// HasAssociation returns true if the resource declares an association with
// the given name
func (r *Resource) HasAssociation(name string) bool {
	_, ok := r.Associations[name]
	return ok
}

// JoinTableName returns the conventional join table name for two resources:
// both table names sorted and joined with an underscore
func JoinTableName(a, b string) string {
	tables := []string{Pluralize(ToSnakeCase(a)), Pluralize(ToSnakeCase(b))}
	sort.Strings(tables)
	return strings.Join(tables, "_")
}

// ToSnakeCase converts a string to snake_case
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// Pluralize adds simple pluralization
func Pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
