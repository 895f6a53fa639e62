package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/lib/pq"
)

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, sku, name, description, price, currency, active, created_at, updated_at
	          FROM products WHERE id = $1`

	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Currency,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}

	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]*domain.Product, error) {
	query := `SELECT id, sku, name, description, price, currency, active, created_at, updated_at
	          FROM products`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(
			&p.ID,
			&p.SKU,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Currency,
			&p.Active,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (sku, name, description, price, currency, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.SKU,
		p.Name,
		p.Description,
		p.Price,
		p.Currency,
		p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products
	          SET sku = $2, name = $3, description = $4, price = $5, currency = $6, active = $7, updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.SKU,
		p.Name,
		p.Description,
		p.Price,
		p.Currency,
		p.Active,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) AddProductImage(ctx context.Context, img *domain.ProductImage) error {
	query := `INSERT INTO product_images (product_id, url, position, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		img.ProductID,
		img.URL,
		img.Position,
	).Scan(&img.ID, &img.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		// 23503: the product the image points at does not exist
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrProductNotFound
		}
		return fmt.Errorf("insert product image: %w", err)
	}
	return nil
}

func (r *Repository) ListProductImages(ctx context.Context, productID int64) ([]*domain.ProductImage, error) {
	query := `SELECT id, product_id, url, position, created_at
	          FROM product_images WHERE product_id = $1 ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query product images: %w", err)
	}
	defer rows.Close()

	var images []*domain.ProductImage
	for rows.Next() {
		img := &domain.ProductImage{}
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product image row: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return images, nil
}

func (r *Repository) DeleteProductImage(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product image: %w", err)
	}
	return nil
}
