package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"json":            FormatJSON,
		"items.JSON":      FormatJSON,
		"/tmp/items.yml":  FormatYAML,
		"yaml":            FormatYAML,
		"export/list.csv": FormatCSV,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseFormat("items.xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeJSON(t *testing.T) {
	items, err := Decode(strings.NewReader(`[
		{"name": "Milk", "category": "Dairy", "selling_price": 250, "min_qty": 5},
		{"name": "Bread", "sku": "BRE-1"}
	]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Dairy", items[0].Category)
	require.Equal(t, 250.0, items[0].SellingPrice)
	require.NotNil(t, items[0].MinQty)
	require.Equal(t, 5, *items[0].MinQty)
	require.Equal(t, "BRE-1", items[1].SKU)

	_, err = Decode(strings.NewReader(`{"name":`), FormatJSON)
	require.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	items, err := Decode(strings.NewReader(`
- name: Soap
  brand: Lux
  purchase_rate: 60
  is_featured: true
- name: Shampoo
  size: Large
`), FormatYAML)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Lux", items[0].Brand)
	require.Equal(t, 60.0, items[0].PurchaseRate)
	require.True(t, items[0].IsFeatured)
	require.Equal(t, "Large", items[1].Size)

	empty, err := Decode(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDecodeCSV(t *testing.T) {
	data := "\ufeffName,Category Name,Selling Price,Purchase Rate,Min Qty,Is Featured,Discount Amount,Notes\n" +
		"Rice,Grocery,\"1,200\",Default,3,true,15,ignored\n" +
		",,,,,,,\n" +
		"Sugar,Grocery,,90,,,,\n"
	items, err := Decode(strings.NewReader(data), FormatCSV)
	require.NoError(t, err)
	require.Len(t, items, 2)

	rice := items[0]
	require.Equal(t, "Rice", rice.Name)
	require.Equal(t, "Grocery", rice.Category)
	require.Equal(t, 1200.0, rice.SellingPrice)
	require.Zero(t, rice.PurchaseRate)
	require.NotNil(t, rice.MinQty)
	require.Equal(t, 3, *rice.MinQty)
	require.True(t, rice.IsFeatured)
	require.NotNil(t, rice.Discount)
	require.Equal(t, 15.0, *rice.Discount)

	sugar := items[1]
	require.Equal(t, 90.0, sugar.PurchaseRate)
	require.Nil(t, sugar.MinQty)
	require.Nil(t, sugar.Discount)
}

func TestDecodeCSVBadNumber(t *testing.T) {
	_, err := Decode(strings.NewReader("name,min_qty\nTea,many\n"), FormatCSV)
	require.ErrorContains(t, err, "line 2")
}

func TestDecodeCSVHeaderAliases(t *testing.T) {
	items, err := Decode(strings.NewReader("name,price,hs_code\nTea,45,0902\n"), FormatCSV)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 45.0, items[0].SellingPrice)
	require.Equal(t, "0902", items[0].TariffCode)
}
