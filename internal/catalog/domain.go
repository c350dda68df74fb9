package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Default product attributes applied when the caller omits them.
const (
	DefaultMinQty = 10
	DefaultMaxQty = 10
)

// Reference is an entity of one dimension (a category, a unit, a tax...).
type Reference struct {
	ID           uuid.UUID
	Dimension    Dimension
	Name         string
	Code         string
	IsActive     bool
	DisplayOnPOS bool
	// Slug is set for categories only.
	Slug *string
	// Percentage is set for taxes only.
	Percentage *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Product is a sellable catalog item linked to one reference per dimension.
type Product struct {
	ID                    uuid.UUID
	SKU                   string
	Code                  string
	Name                  string
	PurchaseRate          float64
	SalesRateExcDisAndTax float64
	SalesRateIncDisAndTax float64
	DiscountAmount        float64
	MinQty                int
	MaxQty                int
	IsActive              bool
	DisplayOnPOS          bool
	IsBatch               bool
	AutoFillOnDemandSheet bool
	NonInventoryItem      bool
	IsDeal                bool
	IsFeatured            bool
	Description           *string
	TariffCode            *string
	ReferenceIDs          map[Dimension]uuid.UUID
	// References is populated on reads.
	References map[Dimension]Reference
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Attributes carries the scalar fields of a product submission. Nil pointers take defaults.
type Attributes struct {
	SKU                   string
	Name                  string
	PurchaseRate          float64
	SalesRateExcDisAndTax float64
	SalesRateIncDisAndTax float64
	DiscountAmount        *float64
	MinQty                *int
	MaxQty                *int
	IsActive              *bool
	DisplayOnPOS          *bool
	IsBatch               *bool
	AutoFillOnDemandSheet *bool
	NonInventoryItem      *bool
	IsDeal                *bool
	IsFeatured            *bool
	Description           *string
	TariffCode            *string
}

// CreateInput creates a product from caller-known reference IDs. Missing dimensions link to
// their Unknown entity.
type CreateInput struct {
	Attributes
	ReferenceIDs map[Dimension]string
}

// NamedCreateInput creates a product from human-readable reference names.
type NamedCreateInput struct {
	Attributes
	ReferenceNames map[Dimension]string
}

// UpdateInput is a partial update. Nil fields are left untouched. A dimension present in
// ReferenceIDs or ReferenceNames is re-resolved; an empty value relinks it to Unknown. When a
// dimension appears in both maps the ID wins.
type UpdateInput struct {
	SKU                   *string
	Name                  *string
	PurchaseRate          *float64
	SalesRateExcDisAndTax *float64
	SalesRateIncDisAndTax *float64
	DiscountAmount        *float64
	MinQty                *int
	MaxQty                *int
	IsActive              *bool
	DisplayOnPOS          *bool
	IsBatch               *bool
	AutoFillOnDemandSheet *bool
	NonInventoryItem      *bool
	IsDeal                *bool
	IsFeatured            *bool
	Description           *string
	TariffCode            *string
	ReferenceIDs          map[Dimension]string
	ReferenceNames        map[Dimension]string
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	// Search matches name, sku or description case-insensitively.
	Search string
	// NameOnly restricts Search to the product name.
	NameOnly      bool
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	IsActive      *bool
	DisplayOnPOS  *bool
	IsFeatured    *bool
	Limit         int
	Offset        int
}

// ReferenceFilter narrows reference listings.
type ReferenceFilter struct {
	Search string
	Limit  int
	Offset int
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items  []Product
	Total  int
	Limit  int
	Offset int
}

// ReferencePage is one page of a reference listing.
type ReferencePage struct {
	Items  []Reference
	Total  int
	Limit  int
	Offset int
}

// WriteReport summarises side effects of a write, used for metrics and logging.
type WriteReport struct {
	Created     []Dimension
	Substituted []Dimension
}
