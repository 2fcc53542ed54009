package handler

import (
	"net/http"
	"strings"
	"time"

	groupsdomain "roommates-app-go/internal/domain/groups"
	"roommates-app-go/internal/transport/httpserver/middleware"
)

type sendInviteRequest struct {
	InviteeID string `json:"invitee_id"`
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

type groupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Members   []string  `json:"members,omitempty"`
}

type inviteResponse struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	InviterID   string     `json:"inviter_id"`
	InviteeID   string     `json:"invitee_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type inviteListsResponse struct {
	Received []inviteResponse `json:"received"`
	Sent     []inviteResponse `json:"sent"`
}

type mergeResponse struct {
	InviteID string   `json:"invite_id"`
	GroupID  string   `json:"group_id"`
	Scenario string   `json:"scenario"`
	Members  []string `json:"members"`
}

func (h *Handlers) GetMyGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	result, err := h.Groups.MyGroup(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, "groups.get_me", err, "user_id", userID)
		return
	}

	response := toGroupResponse(result.Group)
	response.Members = result.Members
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req renameGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	group, err := h.Groups.RenameGroup(r.Context(), userID, req.Name)
	if err != nil {
		h.writeDomainError(w, "groups.rename", err, "user_id", userID)
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(*group))
}

func (h *Handlers) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	if err := h.Groups.LeaveGroup(r.Context(), userID); err != nil {
		h.writeDomainError(w, "groups.leave", err, "user_id", userID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	lists, err := h.Groups.ListInvites(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, "groups.list_invites", err, "user_id", userID)
		return
	}

	writeJSON(w, http.StatusOK, inviteListsResponse{
		Received: toInviteResponses(lists.Received),
		Sent:     toInviteResponses(lists.Sent),
	})
}

func (h *Handlers) SendInvite(w http.ResponseWriter, r *http.Request) {
	var req sendInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	req.InviteeID = strings.TrimSpace(req.InviteeID)
	if req.InviteeID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "invitee_id is required")
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	invite, err := h.Groups.SendInvite(r.Context(), userID, req.InviteeID)
	if err != nil {
		h.writeDomainError(w, "groups.send_invite", err, "user_id", userID, "invitee_id", req.InviteeID)
		return
	}

	writeJSON(w, http.StatusCreated, toInviteResponse(*invite))
}

func (h *Handlers) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	inviteID, ok := pathID(r, "id")
	if !ok {
		invalidID(w)
		return
	}

	result, err := h.Groups.AcceptInvite(r.Context(), inviteID, userID)
	if err != nil {
		h.writeDomainError(w, "groups.accept", err, "user_id", userID, "invite_id", inviteID)
		return
	}

	writeJSON(w, http.StatusOK, mergeResponse{
		InviteID: result.InviteID,
		GroupID:  result.GroupID,
		Scenario: string(result.Scenario),
		Members:  result.Members,
	})
}

func (h *Handlers) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	inviteID, ok := pathID(r, "id")
	if !ok {
		invalidID(w)
		return
	}

	if err := h.Groups.DeclineInvite(r.Context(), inviteID, userID); err != nil {
		h.writeDomainError(w, "groups.decline", err, "user_id", userID, "invite_id", inviteID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toGroupResponse(group groupsdomain.Group) groupResponse {
	return groupResponse{
		ID:        group.ID,
		Name:      group.Name,
		Status:    string(group.Status),
		CreatedBy: group.CreatedBy,
		CreatedAt: group.CreatedAt,
	}
}

func toInviteResponse(invite groupsdomain.Invite) inviteResponse {
	return inviteResponse{
		ID:          invite.ID,
		GroupID:     invite.GroupID,
		InviterID:   invite.InviterID,
		InviteeID:   invite.InviteeID,
		Status:      string(invite.Status),
		CreatedAt:   invite.CreatedAt,
		RespondedAt: invite.RespondedAt,
	}
}

func toInviteResponses(invites []groupsdomain.Invite) []inviteResponse {
	response := make([]inviteResponse, 0, len(invites))
	for _, invite := range invites {
		response = append(response, toInviteResponse(invite))
	}
	return response
}
