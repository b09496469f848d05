package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"store_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
	AverageRating float64         `json:"average_rating"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductListing is a Product joined with its store and review counts,
// the shape the public catalog endpoints return.
type ProductListing struct {
	Product
	StoreName   string  `json:"store_name"`
	StoreRating float64 `json:"store_rating"`
	SellerName  string  `json:"seller_name"`
	ReviewCount int     `json:"review_count"`
}

// ProductFilter narrows catalog listing and search queries.
type ProductFilter struct {
	StoreID  string
	Category string
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   string // price_asc, price_desc, rating, newest
	Page     int
	Limit    int
}

// ProductUpdate carries a partial product edit; nil fields are left as is.
type ProductUpdate struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	Category      *string
	ImageURL      *string
	IsActive      *bool
}
