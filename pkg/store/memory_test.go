package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/seedsync/pkg/schema"
)

func testSchemas(t *testing.T) *schema.Registry {
	t.Helper()

	registry := schema.NewRegistry()
	registry.MustRegister(schema.NewResource("Country").
		AddField(&schema.Field{Name: "id", Primary: true, Auto: true}).
		AddField(&schema.Field{Name: "code", Required: true}).
		AddField(&schema.Field{Name: "name"}))
	registry.MustRegister(schema.NewResource("Product").
		AddField(&schema.Field{Name: "id", Primary: true, Auto: true}).
		AddField(&schema.Field{Name: "sku", Required: true}).
		AddAssociation(&schema.Association{Name: "variants", Kind: schema.AssociationHasMany, Target: "ProductVariant"}).
		AddAssociation(&schema.Association{Name: "tags", Kind: schema.AssociationManyToMany, Target: "Tag"}))
	registry.MustRegister(schema.NewResource("ProductVariant").
		AddField(&schema.Field{Name: "id", Primary: true, Auto: true}).
		AddField(&schema.Field{Name: "sku", Required: true}).
		AddField(&schema.Field{Name: "product_id"}))
	registry.MustRegister(schema.NewResource("Tag").
		AddField(&schema.Field{Name: "id", Primary: true, Auto: true}).
		AddField(&schema.Field{Name: "label", Required: true}))
	return registry
}

func TestMemoryUpsertInsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	e, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO", "name": "Norway"})
	require.NoError(t, err)
	assert.NotNil(t, e.Identifier(), "auto primary key should be generated")
	assert.Equal(t, "NO", e.Attrs["code"])
	assert.Equal(t, 1, m.Count("Country"))
}

func TestMemoryUpsertUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	first, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO", "name": "Norway"})
	require.NoError(t, err)

	updated, err := m.Upsert(ctx, first, "Country", map[string]interface{}{"name": "Kingdom of Norway"})
	require.NoError(t, err)
	assert.Equal(t, first.Identifier(), updated.Identifier())
	assert.Equal(t, "Kingdom of Norway", updated.Attrs["name"])
	assert.Equal(t, 1, m.Count("Country"))
}

func TestMemoryUpsertValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	t.Run("missing required field", func(t *testing.T) {
		_, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"name": "Norway"})
		require.Error(t, err)
		require.True(t, IsValidation(err))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Country", ve.Resource)
		assert.Equal(t, "code", ve.Errors[0].Field)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO", "population": 5})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := m.Upsert(ctx, nil, "Missing", map[string]interface{}{})
		assert.ErrorIs(t, err, ErrUnknownResource)
	})
}

func TestMemoryFindBy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	_, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO", "name": "Norway"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "SE", "name": "Sweden"})
	require.NoError(t, err)

	found, err := m.FindBy(ctx, "Country", map[string]interface{}{"code": "SE"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Sweden", found.Attrs["name"])

	missing, err := m.FindBy(ctx, "Country", map[string]interface{}{"code": "XX"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryDeleteWhere(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	no, err := m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "NO"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "FI"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, nil, "Country", map[string]interface{}{"code": "DK"})
	require.NoError(t, err)

	deleted, err := m.DeleteWhere(ctx, "Country", Predicate{Field: "id", NotIn: []interface{}{no.Identifier()}})
	require.NoError(t, err)
	assert.Len(t, deleted, 2)
	assert.Equal(t, 1, m.Count("Country"))

	remaining, err := m.FindBy(ctx, "Country", map[string]interface{}{"code": "NO"})
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}

func TestMemoryPreloadHasMany(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	product, err := m.Upsert(ctx, nil, "Product", map[string]interface{}{"sku": "SHIRT"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-S", "product_id": product.Identifier()})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-M", "product_id": product.Identifier()})
	require.NoError(t, err)

	loaded, err := m.Preload(ctx, product, []string{"variants"})
	require.NoError(t, err)

	variants, ok := loaded.Attrs["variants"].([]*Entity)
	require.True(t, ok)
	assert.Len(t, variants, 2)
}

func TestMemoryHasManyAdopt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	small, err := m.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-S"})
	require.NoError(t, err)
	medium, err := m.Upsert(ctx, nil, "ProductVariant", map[string]interface{}{"sku": "SHIRT-M"})
	require.NoError(t, err)

	// An entity list on a has_many association points the targets' foreign
	// key at the owner
	product, err := m.Upsert(ctx, nil, "Product", map[string]interface{}{
		"sku":      "SHIRT",
		"variants": []*Entity{small, medium},
	})
	require.NoError(t, err)

	loaded, err := m.Preload(ctx, product, []string{"variants"})
	require.NoError(t, err)
	variants := loaded.Attrs["variants"].([]*Entity)
	require.Len(t, variants, 2)
	for _, v := range variants {
		assert.Equal(t, product.Identifier(), v.Attrs["product_id"])
	}

	t.Run("unknown target", func(t *testing.T) {
		ghost := NewEntity("ProductVariant", "id", map[string]interface{}{"id": "missing"})
		_, err := m.Upsert(ctx, product, "Product", map[string]interface{}{
			"variants": []*Entity{ghost},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryManyToManyReplace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testSchemas(t))

	red, err := m.Upsert(ctx, nil, "Tag", map[string]interface{}{"label": "red"})
	require.NoError(t, err)
	blue, err := m.Upsert(ctx, nil, "Tag", map[string]interface{}{"label": "blue"})
	require.NoError(t, err)

	product, err := m.Upsert(ctx, nil, "Product", map[string]interface{}{
		"sku":  "SHIRT",
		"tags": []*Entity{red, blue},
	})
	require.NoError(t, err)

	loaded, err := m.Preload(ctx, product, []string{"tags"})
	require.NoError(t, err)
	tags := loaded.Attrs["tags"].([]*Entity)
	assert.Len(t, tags, 2)

	// Replacing shrinks the association set
	product, err = m.Upsert(ctx, product, "Product", map[string]interface{}{
		"tags": []*Entity{blue},
	})
	require.NoError(t, err)

	loaded, err = m.Preload(ctx, product, []string{"tags"})
	require.NoError(t, err)
	tags = loaded.Attrs["tags"].([]*Entity)
	require.Len(t, tags, 1)
	assert.Equal(t, "blue", tags[0].Attrs["label"])
}

func TestPredicateMatches(t *testing.T) {
	pred := Predicate{Field: "id", NotIn: []interface{}{"a", "b"}}
	assert.False(t, pred.Matches(map[string]interface{}{"id": "a"}))
	assert.True(t, pred.Matches(map[string]interface{}{"id": "c"}))

	empty := Predicate{Field: "id"}
	assert.True(t, empty.Matches(map[string]interface{}{"id": "a"}))
}
