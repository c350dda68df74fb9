package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "Essential Oils", NormalizeName("  Essential Oils\t"))
	// "e" followed by a combining acute accent composes to a single rune.
	require.Equal(t, "Caf\u00e9", NormalizeName("Cafe\u0301"))
	require.Equal(t, "", NormalizeName("   "))
}

func TestSKUPrefix(t *testing.T) {
	require.Equal(t, "TES", skuPrefix("Test Oil"))
	require.Equal(t, "ABC", skuPrefix("a b c d"))
	require.Equal(t, "OIL", skuPrefix("  9 oil"))
	require.Equal(t, "PRD", skuPrefix("1234"))
	require.Equal(t, "ÇAY", skuPrefix("çay"))
}

func TestCategorySlug(t *testing.T) {
	now := time.UnixMilli(1714554123456)
	require.Equal(t, "essential-oils-123456", categorySlug("Essential Oils", now))
	require.Equal(t, "category-123456", categorySlug("!!!", now))
}

func TestNextNumericCode(t *testing.T) {
	next, ok := nextNumericCode("1000")
	require.True(t, ok)
	require.Equal(t, "1001", next)

	_, ok = nextNumericCode("CAT-UNKNOWN")
	require.False(t, ok)
}

func TestParseDimension(t *testing.T) {
	dim, err := ParseDimension("Categories")
	require.NoError(t, err)
	require.Equal(t, DimensionCategory, dim)

	dim, err = ParseDimension("size")
	require.NoError(t, err)
	require.Equal(t, DimensionSize, dim)

	_, err = ParseDimension("flavour")
	require.ErrorIs(t, err, ErrUnknownDimension)

	require.Len(t, Dimensions, 8)
	require.Equal(t, "UNIT-UNKNOWN", DimensionUnit.UnknownCode())
	require.True(t, DimensionUnit.FoldsCase())
	require.False(t, DimensionCategory.FoldsCase())
}
