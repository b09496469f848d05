package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (customer, product) row as persisted.
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem is a cart line joined with the product it references.
type CartItem struct {
	CartLine
	ProductName   string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	StoreName     string          `json:"store_name"`
}

// CartSummary is the response shape of every cart read.
type CartSummary struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Summarize computes the display total from live prices.
func Summarize(items []CartItem) CartSummary {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return CartSummary{Items: items, Total: total, Count: len(items)}
}
