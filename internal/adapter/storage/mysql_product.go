package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, name, description, price, stock_quantity,
			category, image_url, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price, p.StockQuantity,
		p.Category, p.ImageURL, p.IsActive, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, sellerID, productID string, upd domain.ProductUpdate) (*domain.Product, error) {
	var p domain.Product
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		// Ownership check doubles as the row lock for the partial update.
		var id string
		err := tx.QueryRowContext(ctx, `
			SELECT p.id FROM products p
			JOIN stores s ON s.id = p.store_id
			WHERE p.id = ? AND s.seller_id = ?
			FOR UPDATE`,
			productID, sellerID,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET name = COALESCE(?, name),
				description = COALESCE(?, description),
				price = COALESCE(?, price),
				stock_quantity = COALESCE(?, stock_quantity),
				category = COALESCE(?, category),
				image_url = COALESCE(?, image_url),
				is_active = COALESCE(?, is_active)
			WHERE id = ?`,
			upd.Name, upd.Description, upd.Price, upd.StockQuantity,
			upd.Category, upd.ImageURL, upd.IsActive, productID,
		)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			SELECT id, store_id, name, COALESCE(description, ''), price, stock_quantity,
				COALESCE(category, ''), COALESCE(image_url, ''), average_rating, is_active, created_at
			FROM products WHERE id = ?`, productID,
		).Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.StockQuantity,
			&p.Category, &p.ImageURL, &p.AverageRating, &p.IsActive, &p.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, sellerID, productID string) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `
			SELECT p.id FROM products p
			JOIN stores s ON s.id = p.store_id
			WHERE p.id = ? AND s.seller_id = ?
			FOR UPDATE`,
			productID, sellerID,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
		if isForeignKeyRestricted(err) {
			// order_items reference the product; history must survive.
			return fmt.Errorf("product has been ordered, deactivate it instead: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
}

const productListingQuery = `
	SELECT p.id, p.store_id, p.name, COALESCE(p.description, ''), p.price, p.stock_quantity,
		COALESCE(p.category, ''), COALESCE(p.image_url, ''), p.average_rating, p.is_active, p.created_at,
		s.name, s.average_rating, u.full_name,
		(SELECT COUNT(*) FROM reviews r WHERE r.product_id = p.id)
	FROM products p
	JOIN stores s ON s.id = p.store_id
	JOIN users u ON u.id = s.seller_id`

func scanListing(rows interface{ Scan(...any) error }, l *domain.ProductListing) error {
	return rows.Scan(
		&l.ID, &l.StoreID, &l.Name, &l.Description, &l.Price, &l.StockQuantity,
		&l.Category, &l.ImageURL, &l.AverageRating, &l.IsActive, &l.CreatedAt,
		&l.StoreName, &l.StoreRating, &l.SellerName, &l.ReviewCount,
	)
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.ProductListing, error) {
	var l domain.ProductListing
	err := scanListing(m.db.QueryRowContext(ctx, productListingQuery+` WHERE p.id = ?`, id), &l)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &l, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, int, error) {
	return m.queryListings(ctx, f, false)
}

func (m *MySQLAdapter) SearchProducts(ctx context.Context, f domain.ProductFilter) ([]domain.ProductListing, int, error) {
	return m.queryListings(ctx, f, true)
}

func (m *MySQLAdapter) queryListings(ctx context.Context, f domain.ProductFilter, search bool) ([]domain.ProductListing, int, error) {
	conds := []string{"p.is_active"}
	args := []any{}

	if f.StoreID != "" {
		conds = append(conds, "p.store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.Category != "" {
		conds = append(conds, "p.category LIKE ?")
		args = append(args, "%"+f.Category+"%")
	}
	if search && f.Query != "" {
		conds = append(conds, "(p.name LIKE ? OR p.description LIKE ?)")
		kw := "%" + f.Query + "%"
		args = append(args, kw, kw)
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= ?")
		args = append(args, *f.MaxPrice)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	order := " ORDER BY p.created_at DESC"
	switch f.SortBy {
	case "price_asc":
		order = " ORDER BY p.price ASC"
	case "price_desc":
		order = " ORDER BY p.price DESC"
	case "rating":
		order = " ORDER BY p.average_rating DESC"
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM products p` + where
	if err := m.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := m.db.QueryContext(ctx, productListingQuery+where+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.ProductListing, 0, f.Limit)
	for rows.Next() {
		var l domain.ProductListing
		if err := scanListing(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, total, rows.Err()
}

func (m *MySQLAdapter) ListStoreProducts(ctx context.Context, storeID string, page, limit int) ([]domain.Product, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE store_id = ?`, storeID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count store products: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, store_id, name, COALESCE(description, ''), price, stock_quantity,
			COALESCE(category, ''), COALESCE(image_url, ''), average_rating, is_active, created_at
		FROM products
		WHERE store_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		storeID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list store products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.StockQuantity,
			&p.Category, &p.ImageURL, &p.AverageRating, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}
