package streams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	registry, err := Load()
	require.NoError(t, err)

	expected := []string{
		"products", "suppliers", "supplierProducts",
		"buyOrders", "buyOrderLines", "sellOrders", "sellOrderLines",
	}
	assert.ElementsMatch(t, expected, registry.Names())
}

func TestLookupCaseInsensitive(t *testing.T) {
	registry, err := Load()
	require.NoError(t, err)

	def := registry.Lookup("Products")
	assert.Equal(t, "products", def.Endpoint)
	assert.True(t, registry.Known("PRODUCTS"))
}

func TestLookupUnknownStreamFallsThrough(t *testing.T) {
	registry, err := Load()
	require.NoError(t, err)

	def := registry.Lookup("Warehouses")
	assert.Equal(t, "Warehouses", def.Name)
	assert.Equal(t, "warehouses", def.Endpoint)
	assert.Empty(t, def.Fields)
	assert.False(t, registry.Known("Warehouses"))
}

func TestCatalogStreamDetails(t *testing.T) {
	registry, err := Load()
	require.NoError(t, err)

	products := registry.Lookup("products")
	assert.ElementsMatch(t, []string{"name", "stockLevel", "unlimitedStock"}, products.Mandatory)
	m, ok := products.MappingFor("stockLevel")
	require.True(t, ok)
	assert.Equal(t, domain.FieldInt, m.Type)

	suppliers := registry.Lookup("suppliers")
	assert.Equal(t, "supplier", suppliers.Rules)
	m, ok = suppliers.MappingFor("emails")
	require.True(t, ok)
	assert.Equal(t, domain.FieldArray, m.Type)

	buyOrders := registry.Lookup("buyOrders")
	assert.Equal(t, "buyOrderLines", buyOrders.LineItemsType)
	sellOrders := registry.Lookup("sellOrders")
	assert.Equal(t, "sellOrderLines", sellOrders.LineItemsType)
}

func TestParseRejectsBadCatalog(t *testing.T) {
	_, err := parse([]byte(`[[stream]]
endpoint = "nameless"`))
	assert.Error(t, err)

	_, err = parse([]byte(`[[stream]]
name = "dup"
endpoint = "dup"

[[stream]]
name = "dup"
endpoint = "dup"`))
	assert.Error(t, err)
}

func TestParseDefaultsFieldType(t *testing.T) {
	registry, err := parse([]byte(`[[stream]]
name = "things"
endpoint = "things"
field = [{ from = "x", to = "x" }]`))
	require.NoError(t, err)

	m, ok := registry.Lookup("things").MappingFor("x")
	require.True(t, ok)
	assert.Equal(t, domain.FieldAny, m.Type)
}
