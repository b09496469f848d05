package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAdapter(db), mock
}

func TestReduceStock_GuardRefusesNegativeStock(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(3, "prod-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		return tx.ReduceStock(context.Background(), "prod-1", 3)
	})

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "prod-1", stockErr.ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReduceStock_DecrementsWhenCovered(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(2, "prod-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		return tx.ReduceStock(context.Background(), "prod-1", 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutTx_RollsBackOnCallbackError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("boom")
	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutTx_RetriesOnceWhenPickedAsDeadlockVictim(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(1, "prod-1", 1).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(1, "prod-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		return tx.ReduceStock(context.Background(), "prod-1", 1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutTx_DeadlockRetriedOnlyOnce(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE products").
			WithArgs(1, "prod-1", 1).
			WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
		mock.ExpectRollback()
	}

	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		return tx.ReduceStock(context.Background(), "prod-1", 1)
	})

	var me *mysql.MySQLError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, uint16(1213), me.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartLinesForUpdate_LocksInProductOrder(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	rows := sqlmock.NewRows([]string{
		"product_id", "name", "store_id", "quantity", "price", "stock_quantity",
	}).
		AddRow("prod-1", "Widget", "store-1", 2, "19.99", 10).
		AddRow("prod-2", "Gizmo", "store-1", 1, "5.00", 3)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT ci.product_id, p.name, p.store_id, ci.quantity, p.price, p.stock_quantity").
		WithArgs("user-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	var lines []domain.CheckoutLine
	err := adapter.CheckoutTx(context.Background(), func(tx port.CheckoutTx) error {
		var err error
		lines, err = tx.CartLinesForUpdate(context.Background(), "user-1")
		return err
	})
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, "prod-1", lines[0].ProductID)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 3, lines[1].StockQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus_ForeignStoreNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at").
		WithArgs("order-1", "store-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total_amount", "status", "shipping_address", "created_at"}))
	mock.ExpectRollback()

	_, _, err := adapter.UpdateOrderStatus(context.Background(), "store-2", "order-1", domain.OrderStatusShipped)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
