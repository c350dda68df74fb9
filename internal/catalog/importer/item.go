// Package importer bulk-loads catalog items through the name-based product upsert.
package importer

import (
	"math"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
)

// Fallback prices applied when a row carries neither a purchase rate nor a selling price.
const (
	DefaultPrice      = 100
	purchaseMarginPct = 0.7
	sellingMarkupPct  = 1.5
)

// Item is one row of an import file.
type Item struct {
	Name         string   `json:"name" yaml:"name"`
	SKU          string   `json:"sku,omitempty" yaml:"sku,omitempty"`
	Category     string   `json:"category,omitempty" yaml:"category,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Unit         string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Tax          string   `json:"tax,omitempty" yaml:"tax,omitempty"`
	Supplier     string   `json:"supplier,omitempty" yaml:"supplier,omitempty"`
	Brand        string   `json:"brand,omitempty" yaml:"brand,omitempty"`
	Color        string   `json:"color,omitempty" yaml:"color,omitempty"`
	Size         string   `json:"size,omitempty" yaml:"size,omitempty"`
	PurchaseRate float64  `json:"purchase_rate,omitempty" yaml:"purchase_rate,omitempty"`
	SellingPrice float64  `json:"selling_price,omitempty" yaml:"selling_price,omitempty"`
	MinQty       *int     `json:"min_qty,omitempty" yaml:"min_qty,omitempty"`
	MaxQty       *int     `json:"max_qty,omitempty" yaml:"max_qty,omitempty"`
	Discount     *float64 `json:"discount_amount,omitempty" yaml:"discount_amount,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	TariffCode   string   `json:"pct_or_hs_code,omitempty" yaml:"pct_or_hs_code,omitempty"`
	IsFeatured   bool     `json:"is_featured,omitempty" yaml:"is_featured,omitempty"`
}

// Prices resolves the purchase and selling price of an item. A missing purchase rate is
// derived from the selling price and vice versa; with neither present both fall back to
// DefaultPrice.
func (it Item) Prices() (purchase, selling float64) {
	purchase, selling = it.PurchaseRate, it.SellingPrice
	switch {
	case purchase <= 0 && selling <= 0:
		return DefaultPrice, DefaultPrice
	case purchase <= 0:
		purchase = math.Round(selling * purchaseMarginPct)
	case selling <= 0:
		selling = math.Round(purchase * sellingMarkupPct)
	}
	return purchase, selling
}

// Input converts the item into a name-based create request.
func (it Item) Input() catalog.NamedCreateInput {
	purchase, selling := it.Prices()
	attrs := catalog.Attributes{
		SKU:                   strings.TrimSpace(it.SKU),
		Name:                  strings.TrimSpace(it.Name),
		PurchaseRate:          purchase,
		SalesRateExcDisAndTax: selling,
		SalesRateIncDisAndTax: selling,
		DiscountAmount:        it.Discount,
		MinQty:                it.MinQty,
		MaxQty:                it.MaxQty,
	}
	if d := strings.TrimSpace(it.Description); d != "" {
		attrs.Description = &d
	}
	if c := strings.TrimSpace(it.TariffCode); c != "" {
		attrs.TariffCode = &c
	}
	if it.IsFeatured {
		featured := true
		attrs.IsFeatured = &featured
	}
	return catalog.NamedCreateInput{
		Attributes: attrs,
		ReferenceNames: map[catalog.Dimension]string{
			catalog.DimensionCategory:    it.Category,
			catalog.DimensionSubcategory: it.Subcategory,
			catalog.DimensionUnit:        it.Unit,
			catalog.DimensionTax:         it.Tax,
			catalog.DimensionSupplier:    it.Supplier,
			catalog.DimensionBrand:       it.Brand,
			catalog.DimensionColor:       it.Color,
			catalog.DimensionSize:        it.Size,
		},
	}
}
