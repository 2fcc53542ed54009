package handler

import (
	"net/http"
	"time"

	"roommates-app-go/internal/transport/httpserver/middleware"
)

type notificationResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	limit, err := parseIntParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	items, err := h.Notifications.List(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, "notifications.list", err, "user_id", userID)
		return
	}

	response := make([]notificationResponse, 0, len(items))
	for _, item := range items {
		response = append(response, notificationResponse{
			ID:          item.ID,
			SenderID:    item.SenderID,
			Title:       item.Title,
			Description: item.Description,
			IsRead:      item.IsRead,
			CreatedAt:   item.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		invalidID(w)
		return
	}

	if err := h.Notifications.MarkRead(r.Context(), id, userID); err != nil {
		h.writeDomainError(w, "notifications.mark_read", err, "user_id", userID, "notification_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
