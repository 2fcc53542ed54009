package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	requestsdomain "roommates-app-go/internal/domain/requests"
	"roommates-app-go/internal/transport/httpserver/middleware"
)

type requestResponse struct {
	ID             string                 `json:"id"`
	Kind           string                 `json:"kind"`
	SenderID       string                 `json:"sender_id"`
	RecipientID    string                 `json:"recipient_id"`
	ApartmentID    string                 `json:"apartment_id,omitempty"`
	Status         string                 `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	Metadata       json.RawMessage        `json:"metadata,omitempty"`
	DisplayGroupID string                 `json:"display_group_id,omitempty"`
	MergedProfile  *mergedProfileResponse `json:"merged_profile,omitempty"`
}

type mergedProfileResponse struct {
	GroupID string                  `json:"group_id"`
	Members []profileMemberResponse `json:"members"`
}

type profileMemberResponse struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type approvalResponse struct {
	RequestID        string   `json:"request_id"`
	Kind             string   `json:"kind"`
	Status           string   `json:"status"`
	Partial          bool     `json:"partial"`
	SideEffectErrors []string `json:"side_effect_errors"`
}

type requestStatusResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	query := r.URL.Query()
	criteria, err := requestsdomain.ParseCriteria(query.Get("tab"), query.Get("kind"), query.Get("status"))
	if err != nil {
		h.writeDomainError(w, "requests.list", err, "user_id", userID)
		return
	}

	items, err := h.Requests.ListRequests(r.Context(), userID, criteria)
	if err != nil {
		h.writeDomainError(w, "requests.list", err, "user_id", userID)
		return
	}

	response := make([]requestResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toRequestResponse(item))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) ApproveApartmentRequest(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "requests.approve_apartment", h.Requests.ApproveApartmentRequest)
}

func (h *Handlers) ApproveMatch(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, "requests.approve_match", h.Requests.ApproveMatch)
}

func (h *Handlers) RejectApartmentRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "requests.reject_apartment", requestsdomain.StatusRejected, h.Requests.RejectApartmentRequest)
}

func (h *Handlers) CancelApartmentRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "requests.cancel_apartment", requestsdomain.StatusCancelled, h.Requests.CancelApartmentRequest)
}

func (h *Handlers) RejectMatch(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "requests.reject_match", requestsdomain.StatusRejected, h.Requests.RejectMatch)
}

type approveFunc func(ctx context.Context, id, actorID string) (*requestsdomain.ApprovalResult, error)

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request, op string, fn approveFunc) {
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

	result, err := fn(r.Context(), id, userID)
	if err != nil {
		h.writeDomainError(w, op, err, "user_id", userID, "request_id", id)
		return
	}
	if result.Partial() {
		h.log.Warn(op+": approved with failed side effects", "user_id", userID, "request_id", id, "errors", result.SideEffectErrors())
	}

	writeJSON(w, http.StatusOK, approvalResponse{
		RequestID:        result.RequestID,
		Kind:             string(result.Kind),
		Status:           string(result.Status),
		Partial:          result.Partial(),
		SideEffectErrors: result.SideEffectErrors(),
	})
}

type resolveFunc func(ctx context.Context, id, actorID string) error

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request, op string, status requestsdomain.Status, fn resolveFunc) {
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

	if err := fn(r.Context(), id, userID); err != nil {
		h.writeDomainError(w, op, err, "user_id", userID, "request_id", id)
		return
	}

	writeJSON(w, http.StatusOK, requestStatusResponse{RequestID: id, Status: string(status)})
}

func toRequestResponse(item requestsdomain.UnifiedRequest) requestResponse {
	response := requestResponse{
		ID:             item.ID,
		Kind:           string(item.Kind),
		SenderID:       item.SenderID,
		RecipientID:    item.RecipientID,
		ApartmentID:    item.ApartmentID,
		Status:         string(item.Status),
		CreatedAt:      item.CreatedAt,
		Metadata:       item.Metadata,
		DisplayGroupID: item.DisplayGroupID,
	}
	if item.MergedProfile != nil {
		members := make([]profileMemberResponse, 0, len(item.MergedProfile.Members))
		for _, member := range item.MergedProfile.Members {
			members = append(members, profileMemberResponse{
				UserID:    member.UserID,
				Name:      member.Name,
				AvatarURL: member.AvatarURL,
			})
		}
		response.MergedProfile = &mergedProfileResponse{GroupID: item.MergedProfile.GroupID, Members: members}
	}
	return response
}
