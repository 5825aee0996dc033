package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/catalog"
	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/store"
)

type fakeCatalogStore struct {
	products  map[uuid.UUID]store.Product
	reviews   map[uuid.UUID][]store.Review
	listCalls int
	getCalls  int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		products: map[uuid.UUID]store.Product{},
		reviews:  map[uuid.UUID][]store.Review{},
	}
}

func (f *fakeCatalogStore) ListProducts(_ context.Context, _ store.ListProductsParams) ([]store.Product, error) {
	f.listCalls++
	var out []store.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalogStore) GetProduct(_ context.Context, id uuid.UUID) (store.Product, error) {
	f.getCalls++
	p, ok := f.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalogStore) CreateProduct(_ context.Context, p store.Product) (store.Product, error) {
	p.ID = uuid.New()
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeCatalogStore) UpdateProduct(_ context.Context, p store.Product) (store.Product, error) {
	if _, ok := f.products[p.ID]; !ok {
		return store.Product{}, store.ErrNotFound
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeCatalogStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeCatalogStore) ListReviews(_ context.Context, productID uuid.UUID) ([]store.Review, error) {
	return f.reviews[productID], nil
}

func (f *fakeCatalogStore) AddReview(_ context.Context, r store.Review) (store.Review, error) {
	r.ID = uuid.New()
	f.reviews[r.ProductID] = append(f.reviews[r.ProductID], r)
	return r, nil
}

func newCatalogService(t *testing.T) (*catalog.Service, *fakeCatalogStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fake := newFakeCatalogStore()
	svc := &catalog.Service{
		Store: fake,
		Cache: &catalog.Cache{R: rdb, TTL: time.Minute, Log: zerolog.Nop()},
		Log:   zerolog.Nop(),
	}
	return svc, fake
}

func TestGetServesFromCache(t *testing.T) {
	svc, fake := newCatalogService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, store.Product{Name: "mug", Price: money.MustParse("12.00")})
	require.NoError(t, err)

	first, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "mug", first.Name)
	callsAfterFirst := fake.getCalls

	second, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, callsAfterFirst, fake.getCalls, "second read should hit the cache")
}

func TestMutationsInvalidateCache(t *testing.T) {
	svc, fake := newCatalogService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, store.Product{Name: "mug", Price: money.MustParse("12.00")})
	require.NoError(t, err)

	_, err = svc.List(ctx, store.ListProductsParams{})
	require.NoError(t, err)
	listCalls := fake.listCalls

	// Cached listing.
	_, err = svc.List(ctx, store.ListProductsParams{})
	require.NoError(t, err)
	require.Equal(t, listCalls, fake.listCalls)

	created.Name = "big mug"
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)

	// Invalidation forces a fresh read.
	_, err = svc.List(ctx, store.ListProductsParams{})
	require.NoError(t, err)
	require.Equal(t, listCalls+1, fake.listCalls)
}

func TestGetUnknownProduct(t *testing.T) {
	svc, _ := newCatalogService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestReviewsRequireExistingProduct(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	_, err := svc.AddReview(ctx, store.Review{ProductID: uuid.New(), UserName: "sam", Rating: 5})
	require.ErrorIs(t, err, catalog.ErrNotFound)

	created, err := svc.Create(ctx, store.Product{Name: "mug", Price: money.MustParse("12.00")})
	require.NoError(t, err)

	review, err := svc.AddReview(ctx, store.Review{ProductID: created.ID, UserName: "sam", Rating: 5, Body: "great"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, review.ID)

	reviews, err := svc.Reviews(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
}
