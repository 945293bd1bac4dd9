package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, name, slug, price, sold_count, created_at, updated_at`

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetVariant(ctx context.Context, id string) (Variant, error) {
	var v Variant
	err := r.db.QueryRowContext(ctx, `SELECT id, product_id, weight, price FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Weight, &v.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return Variant{}, ErrVariantNotFound
	}
	if err != nil {
		return Variant{}, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, weight, price FROM product_variants WHERE product_id = $1 ORDER BY price`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	out := make([]Variant, 0)
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Weight, &v.Price); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListImages(ctx context.Context, productID string) ([]Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, variant_id, image_type, image_url, position
		 FROM product_images WHERE product_id = $1 ORDER BY position, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	out := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.VariantID, &img.Type, &img.URL, &img.Position); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ListImagesForProducts batches the image lookup for several products. The
// product listing uses it to avoid one query per card.
func (r *PostgresRepository) ListImagesForProducts(ctx context.Context, productIDs []string) ([]Image, error) {
	if len(productIDs) == 0 {
		return []Image{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, variant_id, image_type, image_url, position
		 FROM product_images WHERE product_id = ANY($1) ORDER BY position, id`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("list images for products: %w", err)
	}
	defer rows.Close()

	out := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.VariantID, &img.Type, &img.URL, &img.Position); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
