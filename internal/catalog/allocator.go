package catalog

import (
	"context"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

// InitialProductCode seeds the product code sequence.
const InitialProductCode = "1000"

const skuSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// AllocatorStore is the read surface the allocator needs.
type AllocatorStore interface {
	SKUExists(ctx context.Context, sku string) (bool, error)
	LastProductCode(ctx context.Context) (string, bool, error)
}

// Allocator hands out product codes and SKUs. Both are best effort: the unique indexes on
// products remain the final arbiter.
type Allocator struct {
	store  AllocatorStore
	now    func() time.Time
	suffix func() string
}

// NewAllocator builds an Allocator.
func NewAllocator(store AllocatorStore) (*Allocator, error) {
	gen, err := nanoid.CustomASCII(skuSuffixAlphabet, 3)
	if err != nil {
		return nil, fmt.Errorf("catalog: sku suffix generator: %w", err)
	}
	return &Allocator{store: store, now: time.Now, suffix: gen}, nil
}

// AllocateCode returns the code following the most recently created product.
func (a *Allocator) AllocateCode(ctx context.Context) (string, error) {
	last, ok, err := a.store.LastProductCode(ctx)
	if err != nil {
		return "", fmt.Errorf("catalog: last product code: %w", err)
	}
	if !ok {
		return InitialProductCode, nil
	}
	if next, ok := nextNumericCode(last); ok {
		return next, nil
	}
	return timestampDigits(a.now(), 6), nil
}

// AllocateSKU returns explicit verbatim, or derives a SKU from the product name. An explicit
// SKU that is already taken yields ErrDuplicateSKU.
func (a *Allocator) AllocateSKU(ctx context.Context, productName, explicit string) (string, error) {
	if explicit != "" {
		exists, err := a.store.SKUExists(ctx, explicit)
		if err != nil {
			return "", fmt.Errorf("catalog: check sku: %w", err)
		}
		if exists {
			return "", fmt.Errorf("%w: %s", ErrDuplicateSKU, explicit)
		}
		return explicit, nil
	}
	candidate := skuPrefix(productName) + timestampDigits(a.now(), 6)
	exists, err := a.store.SKUExists(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("catalog: check sku: %w", err)
	}
	if exists {
		candidate += a.suffix()
	}
	return candidate, nil
}
