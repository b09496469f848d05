package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type Handlers struct {
	Auth          *AuthHandler
	Stores        *StoreHandler
	Products      *ProductHandler
	Cart          *CartHandler
	Orders        *OrderHandler
	Reviews       *ReviewHandler
	Notifications *NotificationHandler
}

// NewRouter mounts the full API surface under /api/v1. Public reads need no
// token, customer routes need a session, seller routes additionally need the
// seller role.
func NewRouter(h Handlers, auth *service.AuthService, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := Authenticated(auth, logger)
	sellerOnly := RequireRole(domain.RoleSeller, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/me", h.Auth.Me)
		})

		r.Get("/products", h.Products.List)
		r.Get("/products/search", h.Products.Search)
		r.Get("/products/{id}", h.Products.Get)
		r.Get("/products/{id}/reviews", h.Reviews.ListProductReviews)

		r.Get("/stores", h.Stores.List)
		r.Get("/stores/{id}", h.Stores.Get)
		r.Get("/stores/{id}/reviews", h.Reviews.ListStoreReviews)

		r.Group(func(r chi.Router) {
			r.Use(authed)

			r.Get("/cart", h.Cart.Get)
			r.Post("/cart/items", h.Cart.AddItem)
			r.Put("/cart/items/{id}", h.Cart.UpdateItem)
			r.Delete("/cart/items/{id}", h.Cart.RemoveItem)
			r.Delete("/cart", h.Cart.Clear)

			r.Post("/orders/checkout", h.Orders.Checkout)
			r.Get("/orders", h.Orders.ListMine)
			r.Get("/orders/{id}", h.Orders.Get)

			r.Post("/products/{id}/reviews", h.Reviews.AddProductReview)
			r.Post("/stores/{id}/reviews", h.Reviews.AddStoreReview)
			r.Delete("/reviews/{id}", h.Reviews.Delete)

			r.Get("/notifications", h.Notifications.List)
			r.Put("/notifications/read-all", h.Notifications.MarkAllRead)
			r.Put("/notifications/{id}/read", h.Notifications.MarkRead)
		})

		r.Group(func(r chi.Router) {
			r.Use(authed, sellerOnly)

			r.Post("/stores", h.Stores.Create)
			r.Put("/seller/store", h.Stores.Update)
			r.Get("/seller/store", h.Stores.Mine)
			r.Get("/seller/store/revenue", h.Stores.Revenue)

			r.Post("/products", h.Products.Create)
			r.Put("/products/{id}", h.Products.Update)
			r.Delete("/products/{id}", h.Products.Delete)
			r.Get("/seller/products", h.Products.ListMine)

			r.Get("/seller/orders", h.Orders.ListForSeller)
			r.Put("/seller/orders/{id}/status", h.Orders.UpdateStatus)
		})
	})

	return r
}
