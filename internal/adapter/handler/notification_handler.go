package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	notifications, unread, pagination, err := h.notifications.List(r.Context(), session.UserID,
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Notifications []domain.Notification `json:"notifications"`
		UnreadCount   int                   `json:"unread_count"`
		Pagination    domain.Pagination     `json:"pagination"`
	}{Notifications: notifications, UnreadCount: unread, Pagination: pagination})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	n, err := h.notifications.MarkRead(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := h.notifications.MarkAllRead(r.Context(), session.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
