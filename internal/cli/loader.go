// Package cli wires the sync engine into a command-line process: YAML
// schema/fixture loading and the cobra commands around it.
package cli

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/conduit-lang/seedsync/pkg/fixture"
	"github.com/conduit-lang/seedsync/pkg/schema"
)

// Loader reads resource schemas and fixtures from YAML files. References
// between fixtures ($rel, $children) may span files; call Build after every
// file is loaded.
type Loader struct {
	registry *schema.Registry
	defs     []fixtureDef
	byName   map[string]*fixture.Fixture
}

type fixtureDef struct {
	name       string
	resource   string
	searchKeys []string
	records    []map[string]interface{}
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		registry: schema.NewRegistry(),
		byName:   make(map[string]*fixture.Fixture),
	}
}

// LoadFile reads one YAML file of resources and fixtures
func (l *Loader) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, raw := range toList(v.Get("resources")) {
		if err := l.loadResource(raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, raw := range toList(v.Get("fixtures")) {
		if err := l.loadFixture(raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// Build validates cross-fixture references and returns the schema registry
// plus the loaded fixtures in file order
func (l *Loader) Build() (*schema.Registry, []*fixture.Fixture, error) {
	// Two-phase: create every fixture first so references resolve regardless
	// of declaration order, then validate the references actually exist.
	fixtures := make([]*fixture.Fixture, 0, len(l.defs))
	for _, def := range l.defs {
		def := def
		f := &fixture.Fixture{
			Name: def.name,
			Config: fixture.Config{
				Resource:   def.resource,
				SearchKeys: def.searchKeys,
			},
			Produce: func() interface{} {
				records := make([]fixture.Record, len(def.records))
				for i, rec := range def.records {
					records[i] = l.record(rec)
				}
				return records
			},
		}
		if _, dup := l.byName[def.name]; dup {
			return nil, nil, fmt.Errorf("duplicate fixture name %s", def.name)
		}
		l.byName[def.name] = f
		fixtures = append(fixtures, f)
	}

	for _, def := range l.defs {
		for _, rec := range def.records {
			if err := l.checkRefs(rec); err != nil {
				return nil, nil, fmt.Errorf("fixture %s: %w", def.name, err)
			}
		}
	}
	return l.registry, fixtures, nil
}

func (l *Loader) loadResource(raw map[string]interface{}) error {
	name, _ := raw["name"].(string)
	if name == "" {
		return fmt.Errorf("resource is missing a name")
	}
	res := schema.NewResource(name)
	if table, ok := raw["table"].(string); ok && table != "" {
		res.Table = table
	}

	for _, fr := range toList(raw["fields"]) {
		fieldName, _ := fr["name"].(string)
		if fieldName == "" {
			return fmt.Errorf("resource %s: field is missing a name", name)
		}
		res.AddField(&schema.Field{
			Name:     fieldName,
			Primary:  boolAt(fr, "primary"),
			Auto:     boolAt(fr, "auto"),
			Required: boolAt(fr, "required"),
		})
	}

	for _, ar := range toList(raw["associations"]) {
		assocName, _ := ar["name"].(string)
		kindName, _ := ar["kind"].(string)
		kind, err := schema.ParseAssociationKind(kindName)
		if err != nil {
			return fmt.Errorf("resource %s association %s: %w", name, assocName, err)
		}
		target, _ := ar["target"].(string)
		fk, _ := ar["foreign_key"].(string)
		join, _ := ar["join_table"].(string)
		res.AddAssociation(&schema.Association{
			Name:       assocName,
			Kind:       kind,
			Target:     target,
			ForeignKey: fk,
			JoinTable:  join,
		})
	}
	return l.registry.Register(res)
}

func (l *Loader) loadFixture(raw map[string]interface{}) error {
	def := fixtureDef{}
	def.name, _ = raw["name"].(string)
	def.resource, _ = raw["resource"].(string)
	if def.name == "" || def.resource == "" {
		return fmt.Errorf("fixture needs both a name and a resource")
	}
	for _, k := range toStringList(raw["search_keys"]) {
		def.searchKeys = append(def.searchKeys, k)
	}
	def.records = toList(raw["records"])
	l.defs = append(l.defs, def)
	return nil
}

// record converts one raw YAML record, mapping $rel / $lookup / $children
// forms onto the fixture value union
func (l *Loader) record(raw map[string]interface{}) fixture.Record {
	rec := make(fixture.Record, len(raw))
	for field, v := range raw {
		rec[field] = l.value(v)
	}
	return rec
}

func (l *Loader) value(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if ref, ok := t["$rel"].(string); ok {
			return l.relation(ref, t)
		}
		if res, ok := t["$lookup"].(string); ok {
			field, _ := t["field"].(string)
			lk := fixture.Find(res, field, t["value"])
			if extract, ok := t["extract"].(string); ok {
				lk.Extract(extract)
			}
			return lk
		}
		if ref, ok := t["$children"]; ok {
			return l.children(ref, t)
		}
		return t
	case []interface{}:
		if rels, ok := l.relationList(t); ok {
			return rels
		}
		return t
	default:
		return v
	}
}

func (l *Loader) relation(ref string, raw map[string]interface{}) *fixture.Relation {
	rel := fixture.Rel(l.byName[ref])
	if field, ok := raw["field"].(string); ok {
		rel.LookupField = field
		rel.LookupValue = raw["value"]
	}
	switch raw["kind"] {
	case "belongs_to":
		fixture.BelongsTo(rel)
	case "many_to_many":
		fixture.ManyToMany(rel)
	}
	return rel
}

func (l *Loader) children(ref interface{}, raw map[string]interface{}) *fixture.Nested {
	n := &fixture.Nested{}
	if name, ok := ref.(string); ok {
		n.Fixture = l.byName[name]
	} else if inline, ok := ref.(map[string]interface{}); ok {
		n.Resource, _ = inline["resource"].(string)
		for _, rec := range toList(inline["records"]) {
			n.Records = append(n.Records, l.record(rec))
		}
	}
	n.ForeignKey, _ = raw["foreign_key"].(string)
	n.SearchKeys = toStringList(raw["search_keys"])
	return n
}

// relationList recognizes a list made entirely of $rel forms
func (l *Loader) relationList(items []interface{}) (fixture.RelationList, bool) {
	var rels fixture.RelationList
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		ref, ok := m["$rel"].(string)
		if !ok {
			return nil, false
		}
		rels = append(rels, l.relation(ref, m))
	}
	return rels, len(rels) > 0
}

// checkRefs walks a raw record, recursively through lists and nested maps
// (inline $children records included), and reports $rel / $children names
// that no loaded fixture declares
func (l *Loader) checkRefs(raw map[string]interface{}) error {
	for _, v := range raw {
		if err := l.checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) checkValue(v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		if ref, ok := t["$rel"].(string); ok {
			if _, exists := l.byName[ref]; !exists {
				return fmt.Errorf("unknown fixture reference %s", ref)
			}
		}
		if ref, ok := t["$children"].(string); ok {
			if _, exists := l.byName[ref]; !exists {
				return fmt.Errorf("unknown fixture reference %s", ref)
			}
		}
		for _, nested := range t {
			if err := l.checkValue(nested); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range t {
			if err := l.checkValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func toList(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func boolAt(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func toStringList(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
