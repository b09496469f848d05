package domain

import "time"

const (
	NotificationNewOrder    = "new_order"
	NotificationOrderStatus = "order_status"
	NotificationGeneral     = "general"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
