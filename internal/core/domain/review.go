package domain

import "time"

// Review targets exactly one of ProductID or StoreID.
type Review struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ProductID    *string   `json:"product_id,omitempty"`
	StoreID      *string   `json:"store_id,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
	ReviewerName string    `json:"reviewer_name,omitempty"`
}
