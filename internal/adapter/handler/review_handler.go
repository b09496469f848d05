package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews *service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ReviewHandler) AddProductReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	review, err := h.reviews.AddProductReview(r.Context(), session.UserID, chi.URLParam(r, "id"),
		req.Rating, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) AddStoreReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	review, err := h.reviews.AddStoreReview(r.Context(), session.UserID, chi.URLParam(r, "id"),
		req.Rating, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

type reviewPageResponse struct {
	Reviews    []domain.Review   `json:"reviews"`
	Pagination domain.Pagination `json:"pagination"`
}

func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	reviews, pagination, err := h.reviews.ListProductReviews(r.Context(), chi.URLParam(r, "id"),
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewPageResponse{Reviews: reviews, Pagination: pagination})
}

func (h *ReviewHandler) ListStoreReviews(w http.ResponseWriter, r *http.Request) {
	reviews, pagination, err := h.reviews.ListStoreReviews(r.Context(), chi.URLParam(r, "id"),
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewPageResponse{Reviews: reviews, Pagination: pagination})
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := h.reviews.Delete(r.Context(), session.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
