package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// mysqlCheckoutTx exposes the checkout steps over one *sql.Tx. The order
// engine composes them; commit and rollback stay with the adapter.
type mysqlCheckoutTx struct {
	tx *sql.Tx
}

func (m *MySQLAdapter) CheckoutTx(ctx context.Context, fn func(tx port.CheckoutTx) error) error {
	run := func() error {
		return m.inTx(ctx, func(tx *sql.Tx) error {
			return fn(&mysqlCheckoutTx{tx: tx})
		})
	}

	err := run()
	// InnoDB may still pick this transaction as a deadlock victim; the
	// rollback is complete, so one retry on a fresh transaction is safe.
	if isDeadlock(err) {
		err = run()
	}
	return err
}

func (c *mysqlCheckoutTx) CartLinesForUpdate(ctx context.Context, userID string) ([]domain.CheckoutLine, error) {
	// Reading in product order keeps lock acquisition mostly aligned
	// across overlapping checkouts; CheckoutTx retries the rare victim.
	rows, err := c.tx.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.store_id, ci.quantity, p.price, p.stock_quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.product_id
		FOR UPDATE OF p`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CheckoutLine
	for rows.Next() {
		var l domain.CheckoutLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.StoreID,
			&l.Quantity, &l.Price, &l.StockQuantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (c *mysqlCheckoutTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := c.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.TotalAmount, o.Status, nullableJSON(o.ShippingAddress), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (c *mysqlCheckoutTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		_, err := c.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, store_id, quantity, price_at_purchase)
			VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, it.OrderID, it.ProductID, it.StoreID, it.Quantity, it.PriceAtPurchase,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// ReduceStock is the stock guard: the conditional update refuses to drive
// stock_quantity below zero, independent of what the caller validated.
func (c *mysqlCheckoutTx) ReduceStock(ctx context.Context, productID string, quantity int) error {
	res, err := c.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?
		WHERE id = ? AND stock_quantity >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reduce stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.InsufficientStockError{ProductID: productID}
	}
	return nil
}

func (c *mysqlCheckoutTx) ClearCart(ctx context.Context, userID string) error {
	if _, err := c.tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		o    domain.Order
		addr sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, status, shipping_address, created_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &addr, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if addr.Valid {
		o.ShippingAddress = []byte(addr.String)
	}

	itemsByOrder, err := m.orderItems(ctx, []string{o.ID}, "")
	if err != nil {
		return nil, err
	}
	o.Items = itemsByOrder[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) ListUserOrders(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, status, shipping_address, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		userID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := m.attachItems(ctx, orders, ""); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (m *MySQLAdapter) ListStoreOrders(ctx context.Context, storeID string, status domain.OrderStatus, page, limit int) ([]domain.Order, int, error) {
	conds := []string{`EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.store_id = ?)`}
	args := []any{storeID}
	if status != "" {
		conds = append(conds, "o.status = ?")
		args = append(args, status)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders o`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count store orders: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := m.db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at
		FROM orders o`+where+`
		ORDER BY o.created_at DESC
		LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list store orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	// Sellers only see their own slice of a multi-store order.
	if err := m.attachItems(ctx, orders, storeID); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, storeID, orderID string, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	var (
		o    domain.Order
		prev domain.OrderStatus
		addr sql.NullString
	)
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		// Lock the order row; missing and foreign orders are deliberately
		// indistinguishable to the caller.
		err := tx.QueryRowContext(ctx, `
			SELECT o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at
			FROM orders o
			WHERE o.id = ?
				AND EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.store_id = ?)
			FOR UPDATE OF o`,
			orderID, storeID,
		).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &addr, &o.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		prev = o.Status
		if prev == status {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ?`, status, orderID,
		); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if addr.Valid {
		o.ShippingAddress = []byte(addr.String)
	}

	itemsByOrder, err := m.orderItems(ctx, []string{o.ID}, "")
	if err != nil {
		return nil, "", err
	}
	o.Items = itemsByOrder[o.ID]
	return &o, prev, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o    domain.Order
			addr sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &addr, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if addr.Valid {
			o.ShippingAddress = []byte(addr.String)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// orderItems loads line items for the given orders, optionally filtered to
// one store, keyed by order id.
func (m *MySQLAdapter) orderItems(ctx context.Context, orderIDs []string, storeID string) (map[string][]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[string][]domain.OrderItem{}, nil
	}

	placeholders := strings.Repeat("?,", len(orderIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(orderIDs)+1)
	for _, id := range orderIDs {
		args = append(args, id)
	}

	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.store_id, oi.quantity, oi.price_at_purchase, p.name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (` + placeholders + `)`
	if storeID != "" {
		query += ` AND oi.store_id = ?`
		args = append(args, storeID)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.StoreID,
			&it.Quantity, &it.PriceAtPurchase, &it.ProductName); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) attachItems(ctx context.Context, orders []domain.Order, storeID string) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := m.orderItems(ctx, ids, storeID)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return nil
}
