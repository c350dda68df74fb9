package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
)

type countingStore struct {
	*memStore
	productLists   atomic.Int32
	referenceLists atomic.Int32
	listErr        error
}

func (c *countingStore) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	c.productLists.Add(1)
	if c.listErr != nil {
		return nil, 0, c.listErr
	}
	return c.memStore.ListProducts(ctx, filter)
}

func (c *countingStore) ListReferences(ctx context.Context, dim Dimension, filter ReferenceFilter) ([]Reference, int, error) {
	c.referenceLists.Add(1)
	if c.listErr != nil {
		return nil, 0, c.listErr
	}
	return c.memStore.ListReferences(ctx, dim, filter)
}

func newCachedService(t *testing.T) (*Service, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := &countingStore{memStore: newMemStore()}
	svc, err := NewService(store, discardLogger(), ServiceConfig{
		ReferenceMode: ReferenceModeLenient,
		Cache:         cache.New(client, "catalog:cache", time.Minute),
	})
	require.NoError(t, err)
	return svc, store, mr
}

func createFeatured(t *testing.T, svc *Service, name string) Product {
	t.Helper()
	product, err := svc.CreateProductFromNames(context.Background(), NamedCreateInput{
		Attributes: Attributes{
			Name:                  name,
			PurchaseRate:          10,
			SalesRateExcDisAndTax: 15,
			SalesRateIncDisAndTax: 15,
			IsActive:              ptr(true),
			IsFeatured:            ptr(true),
		},
		ReferenceNames: map[Dimension]string{DimensionCategory: "Gifts"},
	})
	require.NoError(t, err)
	return product
}

func TestFeaturedProductsServedFromCache(t *testing.T) {
	svc, store, _ := newCachedService(t)
	ctx := context.Background()
	first := createFeatured(t, svc, "Candle")

	items, err := svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, first.ID, items[0].ID)

	items, err = svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int32(1), store.productLists.Load())

	createFeatured(t, svc, "Diffuser")
	items, err = svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int32(2), store.productLists.Load())
}

func TestListReferencesCacheKeyedByFilter(t *testing.T) {
	svc, store, _ := newCachedService(t)
	ctx := context.Background()
	createFeatured(t, svc, "Candle")

	page, err := svc.ListReferences(ctx, DimensionCategory, ReferenceFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Gifts", page.Items[0].Name)

	_, err = svc.ListReferences(ctx, DimensionCategory, ReferenceFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int32(1), store.referenceLists.Load())

	_, err = svc.ListReferences(ctx, DimensionCategory, ReferenceFilter{Limit: 10, Search: "gif"})
	require.NoError(t, err)
	require.Equal(t, int32(2), store.referenceLists.Load())
}

func TestCacheOutageFallsBackToRepository(t *testing.T) {
	svc, store, mr := newCachedService(t)
	ctx := context.Background()
	createFeatured(t, svc, "Candle")
	mr.Close()

	items, err := svc.FeaturedProducts(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int32(1), store.productLists.Load())
}

func TestCachedLoaderErrorIsReturned(t *testing.T) {
	svc, store, mr := newCachedService(t)
	boom := errors.New("db down")
	store.listErr = boom

	_, err := svc.FeaturedProducts(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), store.productLists.Load())
	require.Equal(t, []string{"catalog:cache:version"}, mr.Keys())
}
