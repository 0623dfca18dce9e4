package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	country := NewResource("Country").
		AddField(&Field{Name: "id", Primary: true, Auto: true}).
		AddField(&Field{Name: "code", Required: true}).
		AddField(&Field{Name: "name"})

	org := NewResource("Organization").
		AddField(&Field{Name: "id", Primary: true, Auto: true}).
		AddField(&Field{Name: "slug", Required: true}).
		AddField(&Field{Name: "country_id"}).
		AddAssociation(&Association{Name: "country", Kind: AssociationBelongsTo, Target: "Country"}).
		AddAssociation(&Association{Name: "tags", Kind: AssociationManyToMany, Target: "Tag"})

	product := NewResource("Product").
		AddField(&Field{Name: "id", Primary: true, Auto: true}).
		AddField(&Field{Name: "sku", Required: true}).
		AddAssociation(&Association{Name: "variants", Kind: AssociationHasMany, Target: "ProductVariant"})

	registry := NewRegistry()
	require.NoError(t, registry.Register(country))
	require.NoError(t, registry.Register(org))
	require.NoError(t, registry.Register(product))
	return registry
}

func TestRegistryRegister(t *testing.T) {
	registry := testRegistry(t)

	assert.Equal(t, 3, registry.Count())
	assert.ElementsMatch(t, []string{"Country", "Organization", "Product"}, registry.Names())

	t.Run("duplicate registration fails", func(t *testing.T) {
		err := registry.Register(NewResource("Country"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("get", func(t *testing.T) {
		res, ok := registry.Get("Country")
		require.True(t, ok)
		assert.Equal(t, "countries", res.Table)

		_, ok = registry.Get("Missing")
		assert.False(t, ok)
	})
}

func TestRegistryInspector(t *testing.T) {
	registry := testRegistry(t)

	t.Run("primary key fields", func(t *testing.T) {
		pks, err := registry.PrimaryKeyFields("Country")
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, pks)

		_, err = registry.PrimaryKeyFields("Missing")
		assert.Error(t, err)
	})

	t.Run("association kind", func(t *testing.T) {
		assert.Equal(t, AssociationBelongsTo, registry.AssociationKind("Organization", "country"))
		assert.Equal(t, AssociationManyToMany, registry.AssociationKind("Organization", "tags"))
		assert.Equal(t, AssociationHasMany, registry.AssociationKind("Product", "variants"))
		assert.Equal(t, AssociationNone, registry.AssociationKind("Organization", "slug"))
		assert.Equal(t, AssociationNone, registry.AssociationKind("Missing", "anything"))
	})

	t.Run("foreign key field", func(t *testing.T) {
		assert.Equal(t, "product_id", registry.ForeignKeyField("Product", "variants"))
		assert.Equal(t, "", registry.ForeignKeyField("Organization", "country"))
		assert.Equal(t, "", registry.ForeignKeyField("Organization", "tags"))
	})

	t.Run("declared associations", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"country", "tags"}, registry.DeclaredAssociations("Organization"))
		assert.Empty(t, registry.DeclaredAssociations("Country"))
	})
}

func TestAssociationDefaults(t *testing.T) {
	res := NewResource("Product").
		AddAssociation(&Association{Name: "variants", Kind: AssociationHasMany, Target: "ProductVariant"}).
		AddAssociation(&Association{Name: "owner", Kind: AssociationBelongsTo, Target: "User"}).
		AddAssociation(&Association{Name: "tags", Kind: AssociationManyToMany, Target: "Tag"})

	assert.Equal(t, "product_id", res.Associations["variants"].ForeignKey)
	assert.Equal(t, "owner_id", res.Associations["owner"].ForeignKey)
	assert.Equal(t, "products_tags", res.Associations["tags"].JoinTable)
}

func TestPrimaryKeyFallback(t *testing.T) {
	res := NewResource("Widget").AddField(&Field{Name: "id"})
	assert.Equal(t, []string{"id"}, res.PrimaryKeyFields())
}

func TestParseAssociationKind(t *testing.T) {
	tests := []struct {
		input string
		want  AssociationKind
	}{
		{"belongs_to", AssociationBelongsTo},
		{"has_one", AssociationHasOne},
		{"has_many", AssociationHasMany},
		{"many_to_many", AssociationManyToMany},
		{"none", AssociationNone},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseAssociationKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.input, kind.String())
		})
	}

	_, err := ParseAssociationKind("sideways")
	assert.Error(t, err)
}

func TestNamingHelpers(t *testing.T) {
	assert.Equal(t, "product_variant", ToSnakeCase("ProductVariant"))
	assert.Equal(t, "organization", ToSnakeCase("Organization"))
	assert.Equal(t, "countries", Pluralize("country"))
	assert.Equal(t, "boxes", Pluralize("box"))
	assert.Equal(t, "products", Pluralize("product"))
	assert.Equal(t, "organizations_tags", JoinTableName("Tag", "Organization"))
}
