package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/conduit-lang/seedsync/pkg/schema"
)

// Dialect selects the SQL placeholder style
type Dialect int

const (
	// DialectSQLite uses ? placeholders
	DialectSQLite Dialect = iota
	// DialectPostgres uses $n placeholders
	DialectPostgres
)

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQL is a database/sql-backed Adapter. It issues plain statements on the
// handed-in DB; callers wanting a sync to be atomic should hand in a
// connection already inside a transaction.
type SQL struct {
	db      *sql.DB
	schemas *schema.Registry
	dialect Dialect
}

// NewSQL creates a SQL adapter over db for the given schemas
func NewSQL(db *sql.DB, schemas *schema.Registry, dialect Dialect) *SQL {
	return &SQL{db: db, schemas: schemas, dialect: dialect}
}

// FindBy implements Adapter
func (s *SQL) FindBy(ctx context.Context, resource string, criteria map[string]interface{}) (*Entity, error) {
	res, ok := s.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	cols := sortedFields(res)
	where, args := s.buildWhere(criteria, 1)
	query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT 1",
		strings.Join(cols, ", "), res.Table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	attrs, err := scanRow(rows, cols)
	if err != nil {
		return nil, err
	}
	return NewEntity(resource, res.PrimaryKeyFields()[0], attrs), nil
}

// Upsert implements Adapter
func (s *SQL) Upsert(ctx context.Context, existing *Entity, resource string, attrs map[string]interface{}) (*Entity, error) {
	res, ok := s.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	fieldAttrs, assocAttrs := splitAssociations(res, attrs)
	if ve := validateAttrs(res, fieldAttrs, existing == nil); ve != nil {
		return nil, ve
	}

	pk := res.PrimaryKeyFields()[0]
	var id interface{}
	var err error
	if existing == nil {
		id, err = s.insert(ctx, res, fieldAttrs)
	} else {
		id = existing.Identifier()
		err = s.update(ctx, res, id, fieldAttrs)
	}
	if err != nil {
		return nil, err
	}

	out, err := s.FindBy(ctx, resource, map[string]interface{}{pk: id})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
	}

	for name, targets := range assocAttrs {
		assoc := res.Associations[name]
		switch assoc.Kind {
		case schema.AssociationManyToMany:
			if err := s.replaceJoin(ctx, res, assoc, id, targets); err != nil {
				return nil, err
			}
		case schema.AssociationHasMany:
			if err := s.adoptTargets(ctx, assoc, id, targets); err != nil {
				return nil, err
			}
		}
		out.Attrs[name] = targets
	}
	return out, nil
}

// adoptTargets points each target row's foreign key at the owner; has_many
// associations carry no join table, so the key is written on the target
func (s *SQL) adoptTargets(ctx context.Context, assoc *schema.Association, ownerID interface{}, targets []*Entity) error {
	target, ok := s.schemas.Get(assoc.Target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, assoc.Target)
	}
	targetPK := target.PrimaryKeyFields()[0]

	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		target.Table, assoc.ForeignKey, s.dialect.placeholder(1), targetPK, s.dialect.placeholder(2))
	for _, t := range targets {
		if _, err := s.db.ExecContext(ctx, query, ownerID, t.Identifier()); err != nil {
			return ConvertDBError(err)
		}
	}
	return nil
}

// DeleteWhere implements Adapter
func (s *SQL) DeleteWhere(ctx context.Context, resource string, pred Predicate) ([]*Entity, error) {
	res, ok := s.schemas.Get(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	cols := sortedFields(res)
	where, args := s.buildNotIn(pred)

	// Select first, then delete: RETURNING is not available on every driver.
	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(cols, ", "), res.Table, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	deleted, err := scanRows(rows, res, cols)
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	del := fmt.Sprintf("DELETE FROM %s%s", res.Table, where)
	if _, err := s.db.ExecContext(ctx, del, args...); err != nil {
		return nil, ConvertDBError(err)
	}
	return deleted, nil
}

// Preload implements Adapter
func (s *SQL) Preload(ctx context.Context, entity *Entity, associations []string) (*Entity, error) {
	res, ok := s.schemas.Get(entity.Resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, entity.Resource)
	}

	out := NewEntity(entity.Resource, entity.key, copyAttrs(entity.Attrs))
	for _, name := range associations {
		assoc, ok := res.Associations[name]
		if !ok {
			return nil, fmt.Errorf("resource %s has no association %s", entity.Resource, name)
		}
		target, ok := s.schemas.Get(assoc.Target)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, assoc.Target)
		}

		cols := sortedFields(target)
		var query string
		switch assoc.Kind {
		case schema.AssociationHasMany, schema.AssociationHasOne:
			query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
				strings.Join(cols, ", "), target.Table, assoc.ForeignKey, s.dialect.placeholder(1))
		case schema.AssociationManyToMany:
			ownerFK := schema.ToSnakeCase(res.Name) + "_id"
			targetFK := schema.ToSnakeCase(assoc.Target) + "_id"
			qualified := make([]string, len(cols))
			for i, c := range cols {
				qualified[i] = "t." + c
			}
			query = fmt.Sprintf("SELECT %s FROM %s t JOIN %s j ON t.%s = j.%s WHERE j.%s = %s",
				strings.Join(qualified, ", "), target.Table, assoc.JoinTable,
				target.PrimaryKeyFields()[0], targetFK, ownerFK, s.dialect.placeholder(1))
		default:
			return nil, fmt.Errorf("association %s is not multi-valued", name)
		}

		rows, err := s.db.QueryContext(ctx, query, entity.Identifier())
		if err != nil {
			return nil, ConvertDBError(err)
		}
		loaded, err := scanRows(rows, target, cols)
		if err != nil {
			return nil, err
		}
		out.Attrs[name] = loaded
	}
	return out, nil
}

func (s *SQL) insert(ctx context.Context, res *schema.Resource, attrs map[string]interface{}) (interface{}, error) {
	rec := copyAttrs(attrs)
	for _, name := range res.PrimaryKeyFields() {
		f := res.Fields[name]
		if f != nil && f.Auto && rec[name] == nil {
			rec[name] = uuid.New().String()
		}
	}

	cols := make([]string, 0, len(rec))
	for name := range rec {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = s.dialect.placeholder(i + 1)
		args[i] = rec[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		res.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, ConvertDBError(err)
	}
	return rec[res.PrimaryKeyFields()[0]], nil
}

func (s *SQL) update(ctx context.Context, res *schema.Resource, id interface{}, attrs map[string]interface{}) error {
	pk := res.PrimaryKeyFields()[0]

	cols := make([]string, 0, len(attrs))
	for name := range attrs {
		if name == pk {
			continue
		}
		cols = append(cols, name)
	}
	if len(cols) == 0 {
		return nil
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, s.dialect.placeholder(i+1))
		args = append(args, attrs[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		res.Table, strings.Join(sets, ", "), pk, s.dialect.placeholder(len(cols)+1))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return ConvertDBError(err)
	}
	return nil
}

func (s *SQL) replaceJoin(ctx context.Context, res *schema.Resource, assoc *schema.Association, ownerID interface{}, targets []*Entity) error {
	ownerFK := schema.ToSnakeCase(res.Name) + "_id"
	targetFK := schema.ToSnakeCase(assoc.Target) + "_id"

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", assoc.JoinTable, ownerFK, s.dialect.placeholder(1))
	if _, err := s.db.ExecContext(ctx, del, ownerID); err != nil {
		return ConvertDBError(err)
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		assoc.JoinTable, ownerFK, targetFK, s.dialect.placeholder(1), s.dialect.placeholder(2))
	for _, t := range targets {
		if _, err := s.db.ExecContext(ctx, ins, ownerID, t.Identifier()); err != nil {
			return ConvertDBError(err)
		}
	}
	return nil
}

// buildWhere builds a deterministic WHERE clause over sorted criteria keys
func (s *SQL) buildWhere(criteria map[string]interface{}, start int) (string, []interface{}) {
	if len(criteria) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = %s", k, s.dialect.placeholder(start+i))
		args[i] = criteria[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQL) buildNotIn(pred Predicate) (string, []interface{}) {
	if len(pred.NotIn) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(pred.NotIn))
	for i := range pred.NotIn {
		placeholders[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf(" WHERE %s NOT IN (%s)", pred.Field, strings.Join(placeholders, ", ")),
		append([]interface{}{}, pred.NotIn...)
}

func sortedFields(res *schema.Resource) []string {
	cols := make([]string, 0, len(res.Fields))
	for name := range res.Fields {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// scanRow scans the current row into an attribute map
func scanRow(rows *sql.Rows, cols []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	attrs := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			attrs[c] = string(b)
		} else {
			attrs[c] = values[i]
		}
	}
	return attrs, nil
}

// scanRows scans all rows into entities
func scanRows(rows *sql.Rows, res *schema.Resource, cols []string) ([]*Entity, error) {
	defer rows.Close()

	pk := res.PrimaryKeyFields()[0]
	var out []*Entity
	for rows.Next() {
		attrs, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, NewEntity(res.Name, pk, attrs))
	}
	return out, rows.Err()
}
