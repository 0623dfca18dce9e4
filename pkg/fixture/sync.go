package fixture

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/seedsync/pkg/graph"
	"github.com/conduit-lang/seedsync/pkg/schema"
	"github.com/conduit-lang/seedsync/pkg/store"
)

// Options control one sync invocation
type Options struct {
	// Prune deletes store rows of the target resource whose identifier is
	// not among the just-synced top-level entities
	Prune bool
}

// Synced is one persisted top-level entity plus the results of its deferred
// child syncs, keyed by the record field that declared them
type Synced struct {
	Entity   *store.Entity
	Children map[string][]*Synced
}

// Result is the outcome of syncing one fixture
type Result struct {
	Synced  []*Synced
	Deleted []*store.Entity
}

// Entities returns the top-level synced entities in producer order
func (r *Result) Entities() []*store.Entity {
	out := make([]*store.Entity, len(r.Synced))
	for i, s := range r.Synced {
		out[i] = s.Entity
	}
	return out
}

// Identifiers returns the identifiers of the top-level synced entities
func (r *Result) Identifiers() []interface{} {
	out := make([]interface{}, len(r.Synced))
	for i, s := range r.Synced {
		out[i] = s.Entity.Identifier()
	}
	return out
}

// Syncer orchestrates fixture syncs against one store and one schema
// inspector. It is an explicit handle; there is no ambient default store.
type Syncer struct {
	store   store.Adapter
	schemas schema.Inspector
	logger  *zap.Logger
}

// NewSyncer creates a syncer over the given store and schemas
func NewSyncer(st store.Adapter, schemas schema.Inspector) *Syncer {
	return &Syncer{store: st, schemas: schemas, logger: zap.NewNop()}
}

// WithLogger sets the structured logger used for sync progress
func (s *Syncer) WithLogger(logger *zap.Logger) *Syncer {
	s.logger = logger
	return s
}

// Sync applies one fixture's records to the store: resolve each record,
// upsert by search keys, run deferred child syncs with the parent identifier
// injected, and optionally prune rows the fixture no longer defines.
// Execution is strictly sequential; a failure stops further records but does
// not roll back earlier writes.
func (s *Syncer) Sync(ctx context.Context, f *Fixture, opts Options) (*Result, error) {
	keys, err := s.searchKeys(f.Config)
	if err != nil {
		return nil, err
	}

	records, err := canonicalize(f.Produce())
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", f.Name, err)
	}
	s.logger.Debug("syncing fixture",
		zap.String("fixture", f.Name),
		zap.String("resource", f.Config.Resource),
		zap.Int("records", len(records)))

	result := &Result{}
	for _, rec := range records {
		synced, err := s.syncRecord(ctx, f, keys, rec)
		if err != nil {
			return nil, err
		}
		result.Synced = append(result.Synced, synced)
	}

	if opts.Prune {
		deleted, err := s.prune(ctx, f.Config.Resource, result)
		if err != nil {
			return nil, err
		}
		result.Deleted = deleted
		s.logger.Debug("pruned fixture resource",
			zap.String("fixture", f.Name),
			zap.Int("deleted", len(deleted)))
	}
	return result, nil
}

// SyncAll syncs a batch of fixtures in dependency order. The first failure
// stops the batch; fixtures synced earlier stay committed, and their results
// are returned alongside the error.
func (s *Syncer) SyncAll(ctx context.Context, fixtures []*Fixture, opts Options) (map[string]*Result, error) {
	byName := make(map[string]*Fixture, len(fixtures))
	for _, f := range fixtures {
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate fixture name %s", f.Name)
		}
		byName[f.Name] = f
	}

	nodes := make([]graph.Node, 0, len(fixtures))
	for _, f := range fixtures {
		nodes = append(nodes, graph.Node{Name: f.Name, Deps: Dependencies(f, byName)})
	}
	order, err := graph.BuildOrder(nodes)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*Result, len(order))
	for _, name := range order {
		result, err := s.Sync(ctx, byName[name], opts)
		if err != nil {
			return results, &SyncError{Fixture: name, Err: err}
		}
		results[name] = result
	}
	return results, nil
}

// BuildOrder returns the safe sync order for a batch of fixtures
func BuildOrder(fixtures []*Fixture) ([]string, error) {
	byName := make(map[string]*Fixture, len(fixtures))
	for _, f := range fixtures {
		byName[f.Name] = f
	}
	nodes := make([]graph.Node, 0, len(fixtures))
	for _, f := range fixtures {
		nodes = append(nodes, graph.Node{Name: f.Name, Deps: Dependencies(f, byName)})
	}
	return graph.BuildOrder(nodes)
}

func (s *Syncer) syncRecord(ctx context.Context, f *Fixture, keys []string, rec Record) (*Synced, error) {
	resource := f.Config.Resource

	attrs, deferred, err := s.resolveRecord(ctx, resource, rec)
	if err != nil {
		return nil, err
	}

	criteria := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			criteria[k] = v
		}
	}

	existing, err := s.store.FindBy(ctx, resource, criteria)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Give association replacement a base state to diff against
		preload := s.listAssociations(resource, attrs)
		if len(preload) > 0 {
			existing, err = s.store.Preload(ctx, existing, preload)
			if err != nil {
				return nil, err
			}
		}
	}

	entity, err := s.store.Upsert(ctx, existing, resource, attrs)
	if err != nil {
		return nil, err
	}

	synced := &Synced{Entity: entity}
	for _, d := range deferred {
		children, err := s.syncNested(ctx, f, resource, entity, d)
		if err != nil {
			return nil, err
		}
		if synced.Children == nil {
			synced.Children = make(map[string][]*Synced)
		}
		synced.Children[d.field] = children
	}
	return synced, nil
}

// syncNested re-syncs a deferred child source with the parent's identifier
// injected under the nested foreign key
func (s *Syncer) syncNested(ctx context.Context, parent *Fixture, parentResource string, parentEntity *store.Entity, d deferral) ([]*Synced, error) {
	n := d.nested

	var records []Record
	var err error
	name := parent.Name + "." + d.field
	resource := n.Resource
	keys := n.SearchKeys

	if n.Fixture != nil {
		records, err = canonicalize(n.Fixture.Produce())
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", n.Fixture.Name, err)
		}
		name = n.Fixture.Name
		if resource == "" {
			resource = n.Fixture.Config.Resource
		}
		if len(keys) == 0 {
			keys = n.Fixture.Config.SearchKeys
		}
	} else {
		records, err = canonicalize(n.Records)
		if err != nil {
			return nil, err
		}
	}
	if resource == "" {
		return nil, fmt.Errorf("nested sync under %s.%s has no target resource", parent.Name, d.field)
	}

	fk := n.ForeignKey
	if fk == "" {
		fk = schema.ToSnakeCase(parentResource) + "_id"
	}
	for _, rec := range records {
		rec[fk] = parentEntity.Identifier()
	}

	child := &Fixture{
		Name:   name,
		Config: Config{Resource: resource, SearchKeys: keys},
		Produce: func() interface{} {
			return records
		},
	}
	result, err := s.Sync(ctx, child, Options{})
	if err != nil {
		return nil, err
	}
	return result.Synced, nil
}

// prune deletes rows of the resource whose identifier is not among the
// just-synced top-level entities
func (s *Syncer) prune(ctx context.Context, resource string, result *Result) ([]*store.Entity, error) {
	pks, err := s.schemas.PrimaryKeyFields(resource)
	if err != nil {
		return nil, err
	}
	return s.store.DeleteWhere(ctx, resource, store.Predicate{
		Field: pks[0],
		NotIn: result.Identifiers(),
	})
}

// listAssociations names the declared multi-valued associations that carry a
// resolved entity list in attrs
func (s *Syncer) listAssociations(resource string, attrs map[string]interface{}) []string {
	var names []string
	for _, name := range s.schemas.DeclaredAssociations(resource) {
		if !s.schemas.AssociationKind(resource, name).ToMany() {
			continue
		}
		if _, ok := attrs[name].([]*store.Entity); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Syncer) searchKeys(cfg Config) ([]string, error) {
	if len(cfg.SearchKeys) > 0 {
		return cfg.SearchKeys, nil
	}
	return s.schemas.PrimaryKeyFields(cfg.Resource)
}
