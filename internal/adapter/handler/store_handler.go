package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type StoreHandler struct {
	stores *service.StoreService
	logger *zap.Logger
}

func NewStoreHandler(stores *service.StoreService, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{stores: stores, logger: logger}
}

type storeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	store, err := h.stores.Create(r.Context(), session.UserID, req.Name, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, store)
}

type storeUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req storeUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session := sessionFrom(r.Context())
	store, err := h.stores.Update(r.Context(), session.UserID, req.Name, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *StoreHandler) Mine(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	store, err := h.stores.MyStore(r.Context(), session.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	store, err := h.stores.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, pagination, err := h.stores.List(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Stores     []domain.StoreDashboard `json:"stores"`
		Pagination domain.Pagination       `json:"pagination"`
	}{Stores: stores, Pagination: pagination})
}

// Revenue accepts optional start/end bounds as YYYY-MM-DD.
func (h *StoreHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	if v, err := time.Parse("2006-01-02", r.URL.Query().Get("start")); err == nil {
		start = &v
	}
	if v, err := time.Parse("2006-01-02", r.URL.Query().Get("end")); err == nil {
		// Inclusive upper bound: the whole end day counts.
		v = v.Add(24*time.Hour - time.Nanosecond)
		end = &v
	}

	session := sessionFrom(r.Context())
	report, err := h.stores.Revenue(r.Context(), session.UserID, start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
