package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (m *MySQLAdapter) CreateStore(ctx context.Context, s *domain.Store) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		// Lock the seller row so two concurrent creates cannot both pass
		// the existence check.
		var sellerID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE id = ? FOR UPDATE`, s.SellerID,
		).Scan(&sellerID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock seller: %w", err)
		}

		var existing string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM stores WHERE seller_id = ?`, s.SellerID,
		).Scan(&existing)
		if err == nil {
			return fmt.Errorf("seller already has a store: %w", domain.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check existing store: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stores (id, seller_id, name, description, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.SellerID, s.Name, s.Description, s.CreatedAt,
		)
		if isDuplicateKey(err) {
			return fmt.Errorf("store name taken: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert store: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) UpdateStore(ctx context.Context, sellerID string, name, description *string) (*domain.Store, error) {
	_, err := m.db.ExecContext(ctx, `
		UPDATE stores
		SET name = COALESCE(?, name), description = COALESCE(?, description)
		WHERE seller_id = ?`,
		name, description, sellerID,
	)
	if isDuplicateKey(err) {
		return nil, fmt.Errorf("store name taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update store: %w", err)
	}

	var s domain.Store
	err = m.db.QueryRowContext(ctx, `
		SELECT id, seller_id, name, COALESCE(description, ''), average_rating, created_at
		FROM stores WHERE seller_id = ?`, sellerID,
	).Scan(&s.ID, &s.SellerID, &s.Name, &s.Description, &s.AverageRating, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return &s, nil
}

const storeDashboardQuery = `
	SELECT s.id, s.seller_id, s.name, COALESCE(s.description, ''), s.average_rating, s.created_at,
		u.full_name,
		(SELECT COUNT(*) FROM products p WHERE p.store_id = s.id),
		(SELECT COUNT(*) FROM products p WHERE p.store_id = s.id AND p.is_active),
		(SELECT COUNT(*) FROM products p WHERE p.store_id = s.id AND p.stock_quantity = 0),
		(SELECT COUNT(DISTINCT oi.order_id) FROM order_items oi WHERE oi.store_id = s.id),
		(SELECT COALESCE(SUM(oi.price_at_purchase * oi.quantity), 0) FROM order_items oi WHERE oi.store_id = s.id),
		(SELECT COUNT(*) FROM reviews r WHERE r.store_id = s.id)
	FROM stores s
	JOIN users u ON u.id = s.seller_id`

func (m *MySQLAdapter) GetStoreBySellerID(ctx context.Context, sellerID string) (*domain.StoreDashboard, error) {
	return m.scanDashboard(m.db.QueryRowContext(ctx, storeDashboardQuery+` WHERE s.seller_id = ?`, sellerID))
}

func (m *MySQLAdapter) GetStoreByID(ctx context.Context, id string) (*domain.StoreDashboard, error) {
	return m.scanDashboard(m.db.QueryRowContext(ctx, storeDashboardQuery+` WHERE s.id = ?`, id))
}

func (m *MySQLAdapter) scanDashboard(row *sql.Row) (*domain.StoreDashboard, error) {
	var d domain.StoreDashboard
	err := row.Scan(
		&d.ID, &d.SellerID, &d.Name, &d.Description, &d.AverageRating, &d.CreatedAt,
		&d.SellerName, &d.TotalProducts, &d.ActiveProducts, &d.OutOfStock,
		&d.TotalOrders, &d.TotalRevenue, &d.ReviewCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query store dashboard: %w", err)
	}
	return &d, nil
}

func (m *MySQLAdapter) ListStores(ctx context.Context, page, limit int) ([]domain.StoreDashboard, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stores`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stores: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		storeDashboardQuery+` ORDER BY s.created_at DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	stores := make([]domain.StoreDashboard, 0, limit)
	for rows.Next() {
		var d domain.StoreDashboard
		if err := rows.Scan(
			&d.ID, &d.SellerID, &d.Name, &d.Description, &d.AverageRating, &d.CreatedAt,
			&d.SellerName, &d.TotalProducts, &d.ActiveProducts, &d.OutOfStock,
			&d.TotalOrders, &d.TotalRevenue, &d.ReviewCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, d)
	}
	return stores, total, rows.Err()
}

func (m *MySQLAdapter) StoreRevenue(ctx context.Context, storeID string, start, end *time.Time) (*domain.RevenueReport, error) {
	var r domain.RevenueReport
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(oi.price_at_purchase * oi.quantity), 0),
			COUNT(DISTINCT oi.order_id),
			COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.store_id = ?
			AND o.status != 'cancelled'
			AND (? IS NULL OR o.created_at >= ?)
			AND (? IS NULL OR o.created_at <= ?)`,
		storeID, start, start, end, end,
	).Scan(&r.TotalRevenue, &r.TotalOrders, &r.TotalItemsSold)
	if err != nil {
		return nil, fmt.Errorf("store revenue: %w", err)
	}
	return &r, nil
}
