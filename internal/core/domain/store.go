package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Store struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	AverageRating float64   `json:"average_rating"`
	CreatedAt     time.Time `json:"created_at"`
}

// StoreDashboard is the seller-facing aggregate view of a store.
type StoreDashboard struct {
	Store
	SellerName     string          `json:"seller_name"`
	TotalProducts  int             `json:"total_products"`
	ActiveProducts int             `json:"active_products"`
	OutOfStock     int             `json:"out_of_stock"`
	TotalOrders    int             `json:"total_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	ReviewCount    int             `json:"review_count"`
}

// RevenueReport aggregates fulfilled order items for a store over an
// optional date range. Cancelled orders are excluded.
type RevenueReport struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalOrders    int             `json:"total_orders"`
	TotalItemsSold int             `json:"total_items_sold"`
}
