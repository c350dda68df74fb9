package catalog

import (
	"fmt"
	"strings"
)

// Dimension identifies one of the reference tables every product links to.
type Dimension string

const (
	DimensionCategory    Dimension = "category"
	DimensionUnit        Dimension = "unit"
	DimensionTax         Dimension = "tax"
	DimensionSubcategory Dimension = "subcategory"
	DimensionSupplier    Dimension = "supplier"
	DimensionBrand       Dimension = "brand"
	DimensionColor       Dimension = "color"
	DimensionSize        Dimension = "size"
)

// UnknownName is the name of the placeholder entity each dimension falls back to.
const UnknownName = "Unknown"

// Dimensions lists every dimension in resolution order.
var Dimensions = []Dimension{
	DimensionCategory,
	DimensionUnit,
	DimensionTax,
	DimensionSubcategory,
	DimensionSupplier,
	DimensionBrand,
	DimensionColor,
	DimensionSize,
}

type dimensionSpec struct {
	table    string
	column   string
	prefix   string
	foldCase bool
}

var dimensionSpecs = map[Dimension]dimensionSpec{
	DimensionCategory:    {table: "categories", column: "category_id", prefix: "CAT"},
	DimensionUnit:        {table: "units", column: "unit_id", prefix: "UNIT", foldCase: true},
	DimensionTax:         {table: "taxes", column: "tax_id", prefix: "TAX"},
	DimensionSubcategory: {table: "subcategories", column: "subcategory_id", prefix: "SUB"},
	DimensionSupplier:    {table: "suppliers", column: "supplier_id", prefix: "SUP"},
	DimensionBrand:       {table: "brands", column: "brand_id", prefix: "BRA"},
	DimensionColor:       {table: "colors", column: "color_id", prefix: "COL", foldCase: true},
	DimensionSize:        {table: "sizes", column: "size_id", prefix: "SIZ", foldCase: true},
}

// ParseDimension accepts singular or table-style plural names.
func ParseDimension(raw string) (Dimension, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for _, d := range Dimensions {
		if key == string(d) || key == dimensionSpecs[d].table {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, raw)
}

// Valid reports whether d is one of the eight dimensions.
func (d Dimension) Valid() bool {
	_, ok := dimensionSpecs[d]
	return ok
}

// Table returns the backing table name.
func (d Dimension) Table() string { return dimensionSpecs[d].table }

// Column returns the foreign key column on products.
func (d Dimension) Column() string { return dimensionSpecs[d].column }

// CodePrefix returns the prefix used for the Unknown sentinel code.
func (d Dimension) CodePrefix() string { return dimensionSpecs[d].prefix }

// FoldsCase reports whether names in d match case-insensitively.
func (d Dimension) FoldsCase() bool { return dimensionSpecs[d].foldCase }

// UnknownCode returns the code assigned to the Unknown sentinel of d.
func (d Dimension) UnknownCode() string { return d.CodePrefix() + "-UNKNOWN" }
