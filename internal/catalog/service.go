package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/store"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// CatalogStore is the persistence surface behind the catalog service.
type CatalogStore interface {
	ListProducts(ctx context.Context, params store.ListProductsParams) ([]store.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
	CreateProduct(ctx context.Context, p store.Product) (store.Product, error)
	UpdateProduct(ctx context.Context, p store.Product) (store.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListReviews(ctx context.Context, productID uuid.UUID) ([]store.Review, error)
	AddReview(ctx context.Context, r store.Review) (store.Review, error)
}

// Service serves the public catalog and the admin product CRUD.
type Service struct {
	Store CatalogStore
	Cache *Cache
	Log   zerolog.Logger
}

func listKey(params store.ListProductsParams) string {
	b := func(p *bool) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%t", *p)
	}
	return fmt.Sprintf("list:%s:%s:%s:%s:%d:%d",
		params.Category, b(params.Featured), b(params.Bestseller), b(params.NewArrival),
		params.Limit, params.Offset)
}

// List returns catalog entries, served from cache when possible.
func (s *Service) List(ctx context.Context, params store.ListProductsParams) ([]store.Product, error) {
	key := listKey(params)
	var cached []store.Product
	if s.Cache.get(ctx, key, &cached) {
		return cached, nil
	}
	products, err := s.Store.ListProducts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []store.Product{}
	}
	s.Cache.set(ctx, key, products)
	return products, nil
}

// Get fetches one product, served from cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Product, error) {
	key := "product:" + id.String()
	var cached store.Product
	if s.Cache.get(ctx, key, &cached) {
		return cached, nil
	}
	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, ErrNotFound
		}
		return store.Product{}, fmt.Errorf("get product: %w", err)
	}
	s.Cache.set(ctx, key, p)
	return p, nil
}

// Create inserts a product and invalidates cached listings.
func (s *Service) Create(ctx context.Context, p store.Product) (store.Product, error) {
	created, err := s.Store.CreateProduct(ctx, p)
	if err != nil {
		return store.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.Cache.invalidate(ctx)
	return created, nil
}

// Update overwrites a product and invalidates cached listings.
func (s *Service) Update(ctx context.Context, p store.Product) (store.Product, error) {
	updated, err := s.Store.UpdateProduct(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, ErrNotFound
		}
		return store.Product{}, fmt.Errorf("update product: %w", err)
	}
	s.Cache.invalidate(ctx)
	return updated, nil
}

// Delete removes a product and invalidates cached listings.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.Cache.invalidate(ctx)
	return nil
}

// Reviews returns a product's reviews, newest first.
func (s *Service) Reviews(ctx context.Context, productID uuid.UUID) ([]store.Review, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}
	reviews, err := s.Store.ListReviews(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []store.Review{}
	}
	return reviews, nil
}

// AddReview appends a review to an existing product.
func (s *Service) AddReview(ctx context.Context, r store.Review) (store.Review, error) {
	if _, err := s.Get(ctx, r.ProductID); err != nil {
		return store.Review{}, err
	}
	stored, err := s.Store.AddReview(ctx, r)
	if err != nil {
		return store.Review{}, fmt.Errorf("add review: %w", err)
	}
	return stored, nil
}
