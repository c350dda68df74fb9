package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveCreatesOnceAndReuses(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	first, err := r.Resolve(ctx, tx, DimensionCategory, "Spices")
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := r.Resolve(ctx, tx, DimensionCategory, "  Spices ")
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, store.referenceInserts[DimensionCategory])
}

func TestResolveNewReferenceDefaults(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	_, err := r.Resolve(ctx, tx, DimensionTax, "GST")
	require.NoError(t, err)
	tax := store.refs[DimensionTax][0]
	require.Equal(t, "1", tax.Code)
	require.True(t, tax.IsActive)
	require.True(t, tax.DisplayOnPOS)
	require.NotNil(t, tax.Percentage)
	require.Zero(t, *tax.Percentage)
	require.Nil(t, tax.Slug)

	_, err = r.Resolve(ctx, tx, DimensionTax, "VAT")
	require.NoError(t, err)
	require.Equal(t, "2", store.refs[DimensionTax][1].Code)

	_, err = r.Resolve(ctx, tx, DimensionCategory, "Essential Oils")
	require.NoError(t, err)
	category := store.refs[DimensionCategory][0]
	require.NotNil(t, category.Slug)
	require.Regexp(t, `^essential-oils-\d{6}$`, *category.Slug)
	require.Nil(t, category.Percentage)
}

func TestResolveBlankNameUsesUnknown(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	for _, dim := range Dimensions {
		blank, err := r.Resolve(ctx, tx, dim, "   ")
		require.NoError(t, err)
		unknown, err := r.ResolveUnknown(ctx, tx, dim)
		require.NoError(t, err)
		require.Equal(t, blank.ID, unknown.ID)

		ref, err := tx.FindReferenceByID(ctx, dim, unknown.ID)
		require.NoError(t, err)
		require.Equal(t, UnknownName, ref.Name)
		require.Equal(t, dim.UnknownCode(), ref.Code)
		require.Equal(t, 1, store.referenceInserts[dim])
	}
	require.Regexp(t, `^unknown-\d{6}$`, *store.refs[DimensionCategory][0].Slug)
}

func TestResolveFoldsCaseForUnitLikeDimensions(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	kg, err := r.Resolve(ctx, tx, DimensionUnit, "KG")
	require.NoError(t, err)
	lower, err := r.Resolve(ctx, tx, DimensionUnit, "kg")
	require.NoError(t, err)
	require.Equal(t, kg.ID, lower.ID)

	upper, err := r.Resolve(ctx, tx, DimensionCategory, "Spices")
	require.NoError(t, err)
	other, err := r.Resolve(ctx, tx, DimensionCategory, "spices")
	require.NoError(t, err)
	require.NotEqual(t, upper.ID, other.ID)
}

func TestResolveCodeAfterUnknownUsesFallback(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	_, err := r.Resolve(ctx, tx, DimensionBrand, "Acme")
	require.NoError(t, err)
	_, err = r.ResolveUnknown(ctx, tx, DimensionBrand)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, tx, DimensionBrand, "Globex")
	require.NoError(t, err)
	require.Equal(t, "1", store.refs[DimensionBrand][0].Code)
	require.Equal(t, DimensionBrand.UnknownCode(), store.refs[DimensionBrand][1].Code)
	require.Regexp(t, `^\d{6}-[0-9a-f]{5}$`, store.refs[DimensionBrand][2].Code)
}

func TestNextCodeFollowsLatestEntity(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	code, err := r.nextCode(ctx, tx, DimensionSize, now)
	require.NoError(t, err)
	require.Equal(t, "1", code)

	_, _, err = tx.InsertReference(ctx, Reference{Dimension: DimensionSize, Name: "Small", Code: "41"})
	require.NoError(t, err)
	code, err = r.nextCode(ctx, tx, DimensionSize, now)
	require.NoError(t, err)
	require.Equal(t, "42", code)

	_, _, err = tx.InsertReference(ctx, Reference{Dimension: DimensionSize, Name: "Medium", Code: "ab-12"})
	require.NoError(t, err)
	code, err = r.nextCode(ctx, tx, DimensionSize, now)
	require.NoError(t, err)
	require.Regexp(t, `^\d{6}-[0-9a-f]{5}$`, code)
	require.True(t, strings.HasPrefix(code, timestampDigits(now, 6)+"-"))
}

func TestResolveFallsBackOnCodeConflict(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())
	tx := &memTx{store: store}
	ctx := context.Background()

	// "Zeta" owns code 1 but is not the latest numeric code, so the next code collides.
	_, _, err := tx.InsertReference(ctx, Reference{Dimension: DimensionColor, Name: "Zeta", Code: "1"})
	require.NoError(t, err)
	_, _, err = tx.InsertReference(ctx, Reference{Dimension: DimensionColor, Name: "Alpha", Code: "0"})
	require.NoError(t, err)

	res, err := r.Resolve(ctx, tx, DimensionColor, "Red")
	require.NoError(t, err)
	require.True(t, res.Created)
	red, err := tx.FindReferenceByID(ctx, DimensionColor, res.ID)
	require.NoError(t, err)
	require.Regexp(t, `^\d{6}-[0-9a-f]{5}$`, red.Code)
}

func TestResolveIDModes(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	tx := &memTx{store: store}
	existing := store.seedReference(DimensionSupplier, "Acme Foods")

	lenient := NewResolver(ReferenceModeLenient, discardLogger())
	res, err := lenient.ResolveID(ctx, tx, DimensionSupplier, existing.ID.String())
	require.NoError(t, err)
	require.Equal(t, existing.ID, res.ID)
	require.False(t, res.Substituted)

	res, err = lenient.ResolveID(ctx, tx, DimensionSupplier, uuid.NewString())
	require.NoError(t, err)
	require.True(t, res.Substituted)
	unknown, err := lenient.ResolveUnknown(ctx, tx, DimensionSupplier)
	require.NoError(t, err)
	require.Equal(t, unknown.ID, res.ID)

	res, err = lenient.ResolveID(ctx, tx, DimensionSupplier, "not-a-uuid")
	require.NoError(t, err)
	require.Equal(t, unknown.ID, res.ID)

	res, err = lenient.ResolveID(ctx, tx, DimensionSupplier, "")
	require.NoError(t, err)
	require.Equal(t, unknown.ID, res.ID)
	require.False(t, res.Substituted)

	strict := NewResolver(ReferenceModeStrict, discardLogger())
	_, err = strict.ResolveID(ctx, tx, DimensionSupplier, uuid.NewString())
	require.ErrorIs(t, err, ErrStaleReference)
	_, err = strict.ResolveID(ctx, tx, DimensionSupplier, existing.ID.String())
	require.NoError(t, err)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	boom := errors.New("connection reset")
	store.failReference[DimensionBrand] = boom
	r := NewResolver(ReferenceModeLenient, discardLogger())

	_, err := r.Resolve(context.Background(), &memTx{store: store}, DimensionBrand, "Acme")
	require.ErrorIs(t, err, boom)
}

func TestResolveRejectsUnknownDimension(t *testing.T) {
	r := NewResolver(ReferenceModeLenient, discardLogger())
	_, err := r.Resolve(context.Background(), &memTx{store: newMemStore()}, Dimension("flavour"), "x")
	require.ErrorIs(t, err, ErrUnknownDimension)
}

func TestConcurrentUnknownResolutionCreatesOneSentinel(t *testing.T) {
	store := newMemStore()
	r := NewResolver(ReferenceModeLenient, discardLogger())

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
				res, err := r.ResolveUnknown(ctx, tx, DimensionColor)
				ids[i] = res.ID
				return err
			})
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, store.countRefs(DimensionColor))
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestParseReferenceMode(t *testing.T) {
	mode, err := ParseReferenceMode("")
	require.NoError(t, err)
	require.Equal(t, ReferenceModeLenient, mode)

	mode, err = ParseReferenceMode("strict")
	require.NoError(t, err)
	require.Equal(t, ReferenceModeStrict, mode)

	_, err = ParseReferenceMode("relaxed")
	require.ErrorIs(t, err, ErrValidation)
}
