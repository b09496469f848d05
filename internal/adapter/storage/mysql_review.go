package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (m *MySQLAdapter) AddReview(ctx context.Context, r *domain.Review) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		var targetID string
		var err error
		switch {
		case r.ProductID != nil:
			err = tx.QueryRowContext(ctx,
				`SELECT id FROM products WHERE id = ?`, *r.ProductID).Scan(&targetID)
		case r.StoreID != nil:
			err = tx.QueryRowContext(ctx,
				`SELECT id FROM stores WHERE id = ?`, *r.StoreID).Scan(&targetID)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check review target: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reviews (id, user_id, product_id, store_id, rating, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.UserID, r.ProductID, r.StoreID, r.Rating, r.Comment, r.CreatedAt,
		)
		if isDuplicateKey(err) {
			return fmt.Errorf("already reviewed: %w", domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		// The aggregate is part of the same transaction; a committed
		// review never leaves a stale average behind.
		return recomputeRating(ctx, tx, r.ProductID, r.StoreID)
	})
}

func (m *MySQLAdapter) DeleteReview(ctx context.Context, userID, reviewID string) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		var productID, storeID sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT product_id, store_id FROM reviews WHERE id = ? AND user_id = ? FOR UPDATE`,
			reviewID, userID,
		).Scan(&productID, &storeID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock review: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reviews WHERE id = ?`, reviewID,
		); err != nil {
			return fmt.Errorf("delete review: %w", err)
		}

		var pid, sid *string
		if productID.Valid {
			pid = &productID.String
		}
		if storeID.Valid {
			sid = &storeID.String
		}
		return recomputeRating(ctx, tx, pid, sid)
	})
}

// recomputeRating refreshes the single affected target's average, rounded
// to one decimal, zero when no reviews remain.
func recomputeRating(ctx context.Context, tx *sql.Tx, productID, storeID *string) error {
	if productID != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET average_rating = (
				SELECT COALESCE(ROUND(AVG(rating), 1), 0) FROM reviews WHERE product_id = ?
			) WHERE id = ?`,
			*productID, *productID,
		)
		if err != nil {
			return fmt.Errorf("recompute product rating: %w", err)
		}
	}
	if storeID != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE stores SET average_rating = (
				SELECT COALESCE(ROUND(AVG(rating), 1), 0) FROM reviews WHERE store_id = ?
			) WHERE id = ?`,
			*storeID, *storeID,
		)
		if err != nil {
			return fmt.Errorf("recompute store rating: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) ListProductReviews(ctx context.Context, productID string, page, limit int) ([]domain.Review, int, error) {
	return m.listReviews(ctx, "product_id", productID, page, limit)
}

func (m *MySQLAdapter) ListStoreReviews(ctx context.Context, storeID string, page, limit int) ([]domain.Review, int, error) {
	return m.listReviews(ctx, "store_id", storeID, page, limit)
}

func (m *MySQLAdapter) listReviews(ctx context.Context, column, targetID string, page, limit int) ([]domain.Review, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE `+column+` = ?`, targetID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.product_id, r.store_id, r.rating, COALESCE(r.comment, ''), r.created_at,
			u.full_name
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.`+column+` = ?
		ORDER BY r.created_at DESC
		LIMIT ? OFFSET ?`,
		targetID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0, limit)
	for rows.Next() {
		var (
			r        domain.Review
			pid, sid sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &pid, &sid, &r.Rating, &r.Comment,
			&r.CreatedAt, &r.ReviewerName); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		if pid.Valid {
			r.ProductID = &pid.String
		}
		if sid.Valid {
			r.StoreID = &sid.String
		}
		reviews = append(reviews, r)
	}
	return reviews, total, rows.Err()
}
