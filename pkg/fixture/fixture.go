// Package fixture implements declarative record synchronization: fixtures
// produce raw records whose values may reference other fixtures, declare
// nested child records, or look entities up in the store; the syncer resolves
// those references and upserts the results in dependency order.
package fixture

import "context"

// Record is one raw record produced by a fixture: field name to value.
// Values implementing FieldValue are interpreted by the resolver; any other
// value passes through as a literal.
type Record map[string]interface{}

// Config describes how a fixture's records map onto the store
type Config struct {
	// Resource is the target resource type
	Resource string

	// SearchKeys are the fields used to detect whether a record already
	// exists. Defaults to the resource's primary key.
	SearchKeys []string
}

// Producer returns a fixture's raw records: a Record, a []Record, a store
// entity, a slice of entities, or a []interface{} mixing those forms.
// Producers must be pure; they are re-evaluated on every sync.
type Producer func() interface{}

// Fixture is a named unit of configuration plus a record producer
type Fixture struct {
	Name    string
	Config  Config
	Produce Producer
}

// Sync applies the fixture through the given syncer
func (f *Fixture) Sync(ctx context.Context, s *Syncer, opts Options) (*Result, error) {
	return s.Sync(ctx, f, opts)
}

// New creates a fixture producing a fixed record list
func New(name string, cfg Config, records ...Record) *Fixture {
	return &Fixture{
		Name:   name,
		Config: cfg,
		Produce: func() interface{} {
			return append([]Record(nil), records...)
		},
	}
}

// Helper is a named closure shared across fixtures through a Builder
type Helper func(args ...interface{}) interface{}

// Helpers is a table of named helper closures
type Helpers map[string]Helper

// Call invokes a named helper, panicking on unknown names. Helpers are wired
// statically, so a missing helper is a programming error.
func (h Helpers) Call(name string, args ...interface{}) interface{} {
	fn, ok := h[name]
	if !ok {
		panic("fixture: unknown helper " + name)
	}
	return fn(args...)
}

// Builder composes fixtures that share default options and helper functions.
// Fixtures hold an explicit reference to the helper table; there is no
// implicit inheritance and no package-level default store.
type Builder struct {
	defaults Options
	helpers  Helpers
}

// NewBuilder creates a builder with the given defaults and helpers
func NewBuilder(defaults Options, helpers Helpers) *Builder {
	if helpers == nil {
		helpers = Helpers{}
	}
	return &Builder{defaults: defaults, helpers: helpers}
}

// Defaults returns the builder's default sync options
func (b *Builder) Defaults() Options {
	return b.defaults
}

// Fixture returns a configured fixture whose producer receives the builder's
// helper table
func (b *Builder) Fixture(name string, cfg Config, produce func(h Helpers) interface{}) *Fixture {
	return &Fixture{
		Name:   name,
		Config: cfg,
		Produce: func() interface{} {
			return produce(b.helpers)
		},
	}
}
