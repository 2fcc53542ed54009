package requests

import (
	"encoding/json"
	"strings"

	groupsdomain "roommates-app-go/internal/domain/groups"
)

var statusVocabulary = map[string]Status{
	"PENDING":      StatusPending,
	"WAITING":      StatusPending,
	"ממתין":        StatusPending,
	"ACCEPTED":     StatusApproved,
	"APPROVED":     StatusApproved,
	"CONFIRMED":    StatusApproved,
	"אושר":         StatusApproved,
	"DECLINED":     StatusRejected,
	"REJECTED":     StatusRejected,
	"DENIED":       StatusRejected,
	"נדחה":         StatusRejected,
	"CANCELLED":    StatusCancelled,
	"CANCELED":     StatusCancelled,
	"בוטל":         StatusCancelled,
	"EXPIRED":      StatusNotRelevant,
	"NOT_RELEVANT": StatusNotRelevant,
	"IRRELEVANT":   StatusNotRelevant,
	"לא רלוונטי":   StatusNotRelevant,
}

// NormalizeStatus maps a raw status from any request source onto the shared
// enum. Unrecognized input is PENDING.
func NormalizeStatus(raw string) Status {
	key := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if status, ok := statusVocabulary[key]; ok {
		return status
	}

	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if status, ok := statusVocabulary[key]; ok {
		return status
	}
	return StatusPending
}

func fromApartmentRequest(req ApartmentRequest) UnifiedRequest {
	var metadata json.RawMessage
	if len(req.Metadata) > 0 {
		metadata = json.RawMessage(req.Metadata)
	}

	kind := req.Kind()
	return UnifiedRequest{
		ID:          req.ID,
		Kind:        kind,
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		ApartmentID: req.ApartmentID,
		Status:      NormalizeStatus(req.Status),
		CreatedAt:   req.CreatedAt,
		Metadata:    metadata,
	}
}

// fromMatch builds the unified view of a match. displayRecipient replaces the
// missing receiver of a group-targeted match.
func fromMatch(match Match, displayRecipient string) UnifiedRequest {
	item := UnifiedRequest{
		ID:        match.ID,
		Kind:      KindMatch,
		SenderID:  match.SenderID,
		Status:    NormalizeStatus(match.Status),
		CreatedAt: match.CreatedAt,
	}

	if receiver := deref(match.ReceiverID); receiver != "" {
		item.RecipientID = receiver
		return item
	}
	if groupID := deref(match.ReceiverGroupID); groupID != "" {
		item.DisplayGroupID = groupID
		item.RecipientID = displayRecipient
	}
	return item
}

func fromInvite(invite groupsdomain.Invite) UnifiedRequest {
	return UnifiedRequest{
		ID:          invite.ID,
		Kind:        KindGroup,
		SenderID:    invite.InviterID,
		RecipientID: invite.InviteeID,
		Status:      NormalizeStatus(string(invite.Status)),
		CreatedAt:   invite.CreatedAt,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
