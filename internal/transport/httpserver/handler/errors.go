package handler

import (
	"errors"
	"net/http"

	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	requestsdomain "roommates-app-go/internal/domain/requests"
	"roommates-app-go/internal/storeerr"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{groupsdomain.ErrInviteNotFound, http.StatusNotFound, "invite_not_found", "invite not found"},
	{groupsdomain.ErrGroupNotFound, http.StatusNotFound, "group_not_found", "group not found"},
	{groupsdomain.ErrNotInGroup, http.StatusNotFound, "group_not_found", "not in a group"},
	{requestsdomain.ErrRequestNotFound, http.StatusNotFound, "request_not_found", "request not found"},
	{requestsdomain.ErrMatchNotFound, http.StatusNotFound, "match_not_found", "match not found"},
	{requestsdomain.ErrApartmentNotFound, http.StatusNotFound, "apartment_not_found", "apartment not found"},
	{notificationsdomain.ErrNotificationNotFound, http.StatusNotFound, "notification_not_found", "notification not found"},

	{groupsdomain.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
	{requestsdomain.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},

	{groupsdomain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded", "group capacity exceeded"},
	{groupsdomain.ErrDuplicateInvite, http.StatusConflict, "duplicate_invite", "invite already pending"},
	{groupsdomain.ErrInviteResolved, http.StatusConflict, "invite_resolved", "invite already resolved"},
	{groupsdomain.ErrAlreadyMerged, http.StatusConflict, "already_merged", "already in the same group"},
	{groupsdomain.ErrMembershipConflict, http.StatusConflict, "membership_conflict", "membership changed concurrently"},
	{requestsdomain.ErrRequestResolved, http.StatusConflict, "request_resolved", "request already resolved"},

	{groupsdomain.ErrInvalidInvite, http.StatusBadRequest, "invalid_request", "invalid invite"},
	{groupsdomain.ErrInvalidName, http.StatusBadRequest, "invalid_request", "invalid group name"},
	{requestsdomain.ErrInvalidFilter, http.StatusBadRequest, "invalid_request", "invalid filter"},
	{notificationsdomain.ErrInvalidMessage, http.StatusBadRequest, "invalid_request", "invalid message"},
}

// writeDomainError maps err to the HTTP taxonomy and logs it at the matching
// level. op is the log prefix, e.g. "groups.accept".
func (h *Handlers) writeDomainError(w http.ResponseWriter, op string, err error, args ...any) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			h.log.BusinessError(op+": "+mapping.message, err, args...)
			writeError(w, mapping.status, mapping.code, mapping.message)
			return
		}
	}

	if storeerr.IsTransient(err) {
		h.log.InternalError(op+": store unavailable", err, args...)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "store unavailable, retry later")
		return
	}

	h.log.InternalError(op+": failed", err, args...)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
