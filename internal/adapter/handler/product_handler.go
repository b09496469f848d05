package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type ProductHandler struct {
	products *service.ProductService
	logger   *zap.Logger
}

func NewProductHandler(products *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

type productRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	product, err := h.products.Create(r.Context(), session.UserID, service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

type productUpdateRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Category      *string          `json:"category"`
	ImageURL      *string          `json:"image_url"`
	IsActive      *bool            `json:"is_active"`
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req productUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	product, err := h.products.Update(r.Context(), session.UserID, chi.URLParam(r, "id"), domain.ProductUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := h.products.Delete(r.Context(), session.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

type productPageResponse struct {
	Products   []domain.ProductListing `json:"products"`
	Pagination domain.Pagination       `json:"pagination"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, pagination, err := h.products.List(r.Context(), productFilter(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, productPageResponse{Products: products, Pagination: pagination})
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, pagination, err := h.products.Search(r.Context(), productFilter(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, productPageResponse{Products: products, Pagination: pagination})
}

func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	products, pagination, err := h.products.ListMine(r.Context(), session.UserID,
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Products   []domain.Product  `json:"products"`
		Pagination domain.Pagination `json:"pagination"`
	}{Products: products, Pagination: pagination})
}

func productFilter(r *http.Request) domain.ProductFilter {
	q := r.URL.Query()
	f := domain.ProductFilter{
		StoreID:  q.Get("store_id"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
		SortBy:   q.Get("sort"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	}
	if v, err := decimal.NewFromString(q.Get("min_price")); err == nil {
		f.MinPrice = &v
	}
	if v, err := decimal.NewFromString(q.Get("max_price")); err == nil {
		f.MaxPrice = &v
	}
	return f
}
