package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type OrderHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type checkoutRequest struct {
	ShippingAddress json.RawMessage `json:"shipping_address"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	order, err := h.orders.Checkout(r.Context(), session.UserID, req.ShippingAddress)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	order, err := h.orders.GetOrder(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type orderPageResponse struct {
	Orders     []domain.Order    `json:"orders"`
	Pagination domain.Pagination `json:"pagination"`
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	orders, pagination, err := h.orders.ListUserOrders(r.Context(), session.UserID,
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orderPageResponse{Orders: orders, Pagination: pagination})
}

func (h *OrderHandler) ListForSeller(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, pagination, err := h.orders.ListSellerOrders(r.Context(), session.UserID, status,
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orderPageResponse{Orders: orders, Pagination: pagination})
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	order, err := h.orders.UpdateStatus(r.Context(), session.UserID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
