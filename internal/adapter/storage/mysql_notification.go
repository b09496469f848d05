package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func (m *MySQLAdapter) InsertNotification(ctx context.Context, n *domain.Notification) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Message, n.Type, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListNotifications(ctx context.Context, userID string, page, limit int) ([]domain.Notification, int, int, error) {
	var total, unread int
	if err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(NOT is_read), 0) FROM notifications WHERE user_id = ?`,
		userID,
	).Scan(&total, &unread); err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, message, COALESCE(type, ''), is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		userID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0, limit)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, 0, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, unread, rows.Err()
}

func (m *MySQLAdapter) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	if _, err := m.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`,
		notificationID, userID,
	); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}

	var n domain.Notification
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, message, COALESCE(type, ''), is_read, created_at
		FROM notifications WHERE id = ? AND user_id = ?`,
		notificationID, userID,
	).Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return &n, nil
}

func (m *MySQLAdapter) MarkAllRead(ctx context.Context, userID string) error {
	if _, err := m.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`,
		userID,
	); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
