package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (m *MySQLAdapter) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
			p.name, p.price, COALESCE(p.image_url, ''), p.stock_quantity, s.name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN stores s ON s.id = p.store_id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt,
			&it.ProductName, &it.Price, &it.ImageURL, &it.StockQuantity, &it.StoreName); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) AddCartLine(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	var line domain.CartLine
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		// Lock the product row; the merged quantity check must not race
		// with checkouts decrementing the same stock.
		var (
			name     string
			stock    int
			isActive bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT name, stock_quantity, is_active FROM products WHERE id = ? FOR UPDATE`,
			productID,
		).Scan(&name, &stock, &isActive)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		if !isActive {
			return domain.ErrNotFound
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?`,
			userID, productID,
		).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query cart line: %w", err)
		}

		if stock < existing+quantity {
			return &domain.InsufficientStockError{ProductID: productID, ProductName: name}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, quantity, created_at)
			VALUES (?, ?, ?, ?, NOW())
			ON DUPLICATE KEY UPDATE quantity = cart_items.quantity + ?`,
			uuid.NewString(), userID, productID, quantity, quantity,
		)
		if err != nil {
			return fmt.Errorf("upsert cart line: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			SELECT id, user_id, product_id, quantity, created_at
			FROM cart_items WHERE user_id = ? AND product_id = ?`,
			userID, productID,
		).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (m *MySQLAdapter) UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error) {
	var line domain.CartLine
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		var (
			productID string
			name      string
			stock     int
			isActive  bool
		)
		err := tx.QueryRowContext(ctx, `
			SELECT ci.product_id, p.name, p.stock_quantity, p.is_active
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.id = ? AND ci.user_id = ?
			FOR UPDATE`,
			lineID, userID,
		).Scan(&productID, &name, &stock, &isActive)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cart line: %w", err)
		}
		if !isActive {
			return domain.ErrNotFound
		}

		if stock < quantity {
			return &domain.InsufficientStockError{ProductID: productID, ProductName: name}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ? WHERE id = ? AND user_id = ?`,
			quantity, lineID, userID,
		)
		if err != nil {
			return fmt.Errorf("update cart line: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			SELECT id, user_id, product_id, quantity, created_at
			FROM cart_items WHERE id = ?`, lineID,
		).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (m *MySQLAdapter) RemoveCartLine(ctx context.Context, userID, lineID string) error {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND user_id = ?`, lineID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) ClearCart(ctx context.Context, userID string) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
