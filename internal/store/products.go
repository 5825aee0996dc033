package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/money"
)

// Product is a catalog entry with its inventory counters.
type Product struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	LongDescription string      `json:"longDescription"`
	Category        string      `json:"category"`
	Price           money.Money `json:"price"`
	MaterialCost    money.Money `json:"materialCost"`
	Inventory       int         `json:"inventory"`
	Sold            int         `json:"sold"`
	Featured        bool        `json:"featured"`
	Bestseller      bool        `json:"bestseller"`
	NewArrival      bool        `json:"newArrival"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Review is a customer review embedded under a product.
type Review struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListProductsParams filters and paginates the public catalog listing.
type ListProductsParams struct {
	Category   string
	Featured   *bool
	Bestseller *bool
	NewArrival *bool
	Limit      int
	Offset     int
}

const productColumns = `id, name, description, long_description, category,
	price::text, material_cost::text, inventory, sold,
	featured, bestseller, new_arrival, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var (
		p           Product
		price, cost string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.LongDescription, &p.Category,
		&price, &cost, &p.Inventory, &p.Sold,
		&p.Featured, &p.Bestseller, &p.NewArrival, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if p.Price, err = money.Parse(price); err != nil {
		return Product{}, err
	}
	if p.MaterialCost, err = money.Parse(cost); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns catalog entries matching the provided filters.
func (s *Store) ListProducts(ctx context.Context, params ListProductsParams) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	idx := 1
	if params.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, params.Category)
		idx++
	}
	if params.Featured != nil {
		query += fmt.Sprintf(" AND featured = $%d", idx)
		args = append(args, *params.Featured)
		idx++
	}
	if params.Bestseller != nil {
		query += fmt.Sprintf(" AND bestseller = $%d", idx)
		args = append(args, *params.Bestseller)
		idx++
	}
	if params.NewArrival != nil {
		query += fmt.Sprintf(" AND new_arrival = $%d", idx)
		args = append(args, *params.NewArrival)
		idx++
	}
	query += " ORDER BY created_at DESC"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, params.Limit, params.Offset)
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct fetches a single product by id.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, notFound(err)
	}
	return p, nil
}

// CreateProduct inserts a catalog entry and returns the stored record.
func (s *Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO products (name, description, long_description, category,
			price, material_cost, inventory, featured, bestseller, new_arrival)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10)
		RETURNING `+productColumns,
		p.Name, p.Description, p.LongDescription, p.Category,
		p.Price.String(), p.MaterialCost.String(), p.Inventory,
		p.Featured, p.Bestseller, p.NewArrival)
	return scanProduct(row)
}

// UpdateProduct overwrites the mutable fields of a catalog entry.
func (s *Store) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE products SET
			name = $2, description = $3, long_description = $4, category = $5,
			price = $6::numeric, material_cost = $7::numeric, inventory = $8,
			featured = $9, bestseller = $10, new_arrival = $11, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.LongDescription, p.Category,
		p.Price.String(), p.MaterialCost.String(), p.Inventory,
		p.Featured, p.Bestseller, p.NewArrival)
	updated, err := scanProduct(row)
	if err != nil {
		return Product{}, notFound(err)
	}
	return updated, nil
}

// DeleteProduct removes a catalog entry.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementInventory conditionally takes qty units out of stock and adds them
// to the sold counter. Returns false without mutating anything when fewer
// than qty units are available.
func (s *Store) DecrementInventory(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE products
		SET inventory = inventory - $2, sold = sold + $2, updated_at = now()
		WHERE id = $1 AND inventory >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListReviews returns the reviews for a product, newest first.
func (s *Store) ListReviews(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, user_name, rating, body, created_at
		FROM product_reviews WHERE product_id = $1
		ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserName, &r.Rating, &r.Body, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddReview appends a review to a product.
func (s *Store) AddReview(ctx context.Context, r Review) (Review, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO product_reviews (product_id, user_name, rating, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, product_id, user_name, rating, body, created_at`,
		r.ProductID, r.UserName, r.Rating, r.Body)
	var stored Review
	err := row.Scan(&stored.ID, &stored.ProductID, &stored.UserName, &stored.Rating, &stored.Body, &stored.CreatedAt)
	return stored, err
}
