package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE countries (id TEXT PRIMARY KEY, code TEXT NOT NULL, name TEXT)`,
		`CREATE TABLE products (id TEXT PRIMARY KEY, sku TEXT NOT NULL)`,
		`CREATE TABLE product_variants (id TEXT PRIMARY KEY, sku TEXT NOT NULL, product_id TEXT)`,
		`CREATE TABLE tags (id TEXT PRIMARY KEY, label TEXT NOT NULL)`,
		`CREATE TABLE products_tags (product_id TEXT, tag_id TEXT)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewSQL(db, testSchemas(t), DialectSQLite)
}

func TestSQLiteRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	inserted, err := s.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO", "name": "Norway"})
	require.NoError(t, err)
	require.NotNil(t, inserted.Identifier())

	found, err := s.FindBy(ctx, "Country", map[string]interface{}{"code": "NO"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, inserted.Identifier(), found.Identifier())

	updated, err := s.Upsert(ctx, found, "Country", map[string]interface{}{"name": "Kingdom of Norway"})
	require.NoError(t, err)
	assert.Equal(t, inserted.Identifier(), updated.Identifier())
	assert.Equal(t, "Kingdom of Norway", updated.Attrs["name"])
}

func TestSQLiteDeleteWhere(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	no, err := s.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "FI"})
	require.NoError(t, err)

	deleted, err := s.DeleteWhere(ctx, "Country", Predicate{Field: "id", NotIn: []interface{}{no.Identifier()}})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "FI", deleted[0].Attrs["code"])

	remaining, err := s.FindBy(ctx, "Country", map[string]interface{}{"code": "FI"})
	require.NoError(t, err)
	assert.Nil(t, remaining)
}

func TestSQLiteHasManyAdopt(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	small, err := s.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-S"})
	require.NoError(t, err)
	medium, err := s.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-M"})
	require.NoError(t, err)

	product, err := s.Upsert(ctx, nil, "Product", map[string]interface{}{
		"sku":      "SHIRT",
		"variants": []*Entity{small, medium},
	})
	require.NoError(t, err)

	loaded, err := s.Preload(ctx, product, []string{"variants"})
	require.NoError(t, err)
	variants := loaded.Attrs["variants"].([]*Entity)
	require.Len(t, variants, 2)
	for _, v := range variants {
		assert.Equal(t, product.Identifier(), v.Attrs["product_id"])
	}
}

func TestSQLiteManyToMany(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	red, err := s.Upsert(ctx, nil, "Tag", map[string]interface{}{"label": "red"})
	require.NoError(t, err)
	blue, err := s.Upsert(ctx, nil, "Tag", map[string]interface{}{"label": "blue"})
	require.NoError(t, err)

	product, err := s.Upsert(ctx, nil, "Product", map[string]interface{}{
		"sku":  "SHIRT",
		"tags": []*Entity{red, blue},
	})
	require.NoError(t, err)

	loaded, err := s.Preload(ctx, product, []string{"tags"})
	require.NoError(t, err)
	tags := loaded.Attrs["tags"].([]*Entity)
	assert.Len(t, tags, 2)

	product, err = s.Upsert(ctx, product, "Product", map[string]interface{}{
		"tags": []*Entity{blue},
	})
	require.NoError(t, err)

	loaded, err = s.Preload(ctx, product, []string{"tags"})
	require.NoError(t, err)
	tags = loaded.Attrs["tags"].([]*Entity)
	require.Len(t, tags, 1)
	assert.Equal(t, "blue", tags[0].Attrs["label"])
}
