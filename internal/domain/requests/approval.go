package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
)

const (
	stepApartmentPartner = "apartment_partner"
	stepNotify           = "notify"
	stepCrossLink        = "cross_link"
)

// ApproveApartmentRequest marks the request APPROVED and then runs the
// best-effort side effects: partner set, notification, shared-profile link.
// Only the status change can fail the call. Approving an APPROVED request
// replays the side effects, all of which are idempotent.
func (s *Service) ApproveApartmentRequest(ctx context.Context, id, actorID string) (*ApprovalResult, error) {
	req, err := s.repo.GetApartmentRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RecipientID != actorID {
		return nil, ErrForbidden
	}

	switch NormalizeStatus(req.Status) {
	case StatusPending:
		if err := s.transitionApartmentRequest(ctx, req, StatusApproved); err != nil {
			return nil, fmt.Errorf("approve apartment request: %w", err)
		}
	case StatusApproved:
		s.log.Info("requests.approve_apartment: replaying side effects", "request_id", req.ID)
	default:
		return nil, ErrRequestResolved
	}

	kind := req.Kind()
	var sideEffects error

	if err := s.addPartner(ctx, req); err != nil {
		sideEffects = s.sideEffectFailed(sideEffects, stepApartmentPartner, err, "request_id", req.ID, "apartment_id", req.ApartmentID)
	}

	title, description := apartmentApprovedMessage(req.Type)
	if err := s.notifier.SendOnce(ctx, notificationsdomain.Message{
		SenderID:    actorID,
		RecipientID: req.SenderID,
		Title:       title,
		Description: description,
	}, "apartment-request-approved:"+req.ID); err != nil {
		sideEffects = s.sideEffectFailed(sideEffects, stepNotify, err, "request_id", req.ID)
	}

	inviterID := ""
	if req.Type == ApartmentRequestInvite {
		inviterID = req.SenderID
	}
	if err := s.crossLink(ctx, inviterID, actorID, req.SenderID); err != nil {
		sideEffects = s.sideEffectFailed(sideEffects, stepCrossLink, err, "request_id", req.ID)
	}

	return s.approved(req.ID, kind, sideEffects), nil
}

func (s *Service) RejectApartmentRequest(ctx context.Context, id, actorID string) error {
	req, err := s.repo.GetApartmentRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.RecipientID != actorID {
		return ErrForbidden
	}

	switch NormalizeStatus(req.Status) {
	case StatusRejected:
		return nil
	case StatusPending:
	default:
		return ErrRequestResolved
	}

	if err := s.transitionApartmentRequest(ctx, req, StatusRejected); err != nil {
		return fmt.Errorf("reject apartment request: %w", err)
	}
	s.recorder.RequestResolved(req.Kind(), StatusRejected, false)

	if err := s.notifier.SendOnce(ctx, notificationsdomain.Message{
		SenderID:    actorID,
		RecipientID: req.SenderID,
		Title:       "Apartment request declined",
		Description: "Your apartment request was declined.",
	}, "apartment-request-rejected:"+req.ID); err != nil {
		s.log.InternalError("requests.reject_apartment: notification failed", err, "request_id", req.ID)
	}
	return nil
}

// CancelApartmentRequest withdraws a PENDING request on behalf of its sender.
func (s *Service) CancelApartmentRequest(ctx context.Context, id, actorID string) error {
	req, err := s.repo.GetApartmentRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.SenderID != actorID {
		return ErrForbidden
	}

	switch NormalizeStatus(req.Status) {
	case StatusCancelled:
		return nil
	case StatusPending:
	default:
		return ErrRequestResolved
	}

	if err := s.transitionApartmentRequest(ctx, req, StatusCancelled); err != nil {
		return fmt.Errorf("cancel apartment request: %w", err)
	}
	s.recorder.RequestResolved(req.Kind(), StatusCancelled, false)
	return nil
}

// ApproveMatch approves a match addressed to the actor or to the actor's
// active group, notifies the sender and links the two into one shared profile.
func (s *Service) ApproveMatch(ctx context.Context, id, actorID string) (*ApprovalResult, error) {
	match, err := s.authorizedMatch(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	switch NormalizeStatus(match.Status) {
	case StatusPending:
		if err := s.transitionMatch(ctx, match, StatusApproved); err != nil {
			return nil, fmt.Errorf("approve match: %w", err)
		}
	case StatusApproved:
		s.log.Info("requests.approve_match: replaying side effects", "match_id", match.ID)
	default:
		return nil, ErrRequestResolved
	}

	var sideEffects error

	if err := s.notifier.SendOnce(ctx, notificationsdomain.Message{
		SenderID:    actorID,
		RecipientID: match.SenderID,
		Title:       "Match approved",
		Description: "Your roommate match was approved.",
	}, "match-approved:"+match.ID); err != nil {
		sideEffects = s.sideEffectFailed(sideEffects, stepNotify, err, "match_id", match.ID)
	}

	if err := s.crossLink(ctx, match.SenderID, actorID, match.SenderID); err != nil {
		sideEffects = s.sideEffectFailed(sideEffects, stepCrossLink, err, "match_id", match.ID)
	}

	return s.approved(match.ID, KindMatch, sideEffects), nil
}

func (s *Service) RejectMatch(ctx context.Context, id, actorID string) error {
	match, err := s.authorizedMatch(ctx, id, actorID)
	if err != nil {
		return err
	}

	switch NormalizeStatus(match.Status) {
	case StatusRejected:
		return nil
	case StatusPending:
	default:
		return ErrRequestResolved
	}

	if err := s.transitionMatch(ctx, match, StatusRejected); err != nil {
		return fmt.Errorf("reject match: %w", err)
	}
	s.recorder.RequestResolved(KindMatch, StatusRejected, false)
	return nil
}

// transitionApartmentRequest moves req from the status it was read with to
// status. Losing the race to a call that wrote the same status counts as
// success; losing it to any other status is ErrRequestResolved.
func (s *Service) transitionApartmentRequest(ctx context.Context, req *ApartmentRequest, status Status) error {
	err := s.repo.UpdateApartmentRequestStatus(ctx, req.ID, req.Status, status)
	if !errors.Is(err, ErrRequestResolved) {
		return err
	}
	current, getErr := s.repo.GetApartmentRequest(ctx, req.ID)
	if getErr != nil {
		return getErr
	}
	if NormalizeStatus(current.Status) == status {
		return nil
	}
	return err
}

func (s *Service) transitionMatch(ctx context.Context, match *Match, status Status) error {
	err := s.repo.UpdateMatchStatus(ctx, match.ID, match.Status, status)
	if !errors.Is(err, ErrRequestResolved) {
		return err
	}
	current, getErr := s.repo.GetMatch(ctx, match.ID)
	if getErr != nil {
		return getErr
	}
	if NormalizeStatus(current.Status) == status {
		return nil
	}
	return err
}

func (s *Service) authorizedMatch(ctx context.Context, id, actorID string) (*Match, error) {
	match, err := s.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	if receiver := deref(match.ReceiverID); receiver != "" {
		if receiver != actorID {
			return nil, ErrForbidden
		}
		return match, nil
	}

	groupID := deref(match.ReceiverGroupID)
	if groupID == "" {
		return nil, ErrForbidden
	}
	actorGroupID, ok, err := s.groups.ActiveGroup(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !ok || actorGroupID != groupID {
		return nil, ErrForbidden
	}
	return match, nil
}

// addPartner adds the joining user to the apartment partner set. The owner is
// never added.
func (s *Service) addPartner(ctx context.Context, req *ApartmentRequest) error {
	apartment, err := s.repo.GetApartment(ctx, req.ApartmentID)
	if err != nil {
		return fmt.Errorf("load apartment: %w", err)
	}

	userID := req.UserToAdd()
	if userID == apartment.OwnerID {
		return nil
	}

	added, err := s.repo.AddApartmentPartner(ctx, apartment.ID, userID)
	if err != nil {
		return fmt.Errorf("add apartment partner: %w", err)
	}
	if added {
		s.log.Info("requests.approve_apartment: partner added", "apartment_id", apartment.ID, "user_id", userID)
	}
	return nil
}

func (s *Service) crossLink(ctx context.Context, inviterID, approverID, otherID string) error {
	if approverID == "" || otherID == "" || approverID == otherID {
		return nil
	}

	_, err := s.groups.LinkUsers(ctx, groupsdomain.LinkInput{
		InviterID:  inviterID,
		ApproverID: approverID,
		OtherID:    otherID,
	})
	if err != nil {
		return fmt.Errorf("link shared profile: %w", err)
	}
	return nil
}

func (s *Service) sideEffectFailed(acc error, step string, err error, args ...any) error {
	s.recorder.SideEffectFailed(step)
	if errors.Is(err, ErrApartmentFull) {
		s.log.BusinessError("requests.approve: "+step+" skipped", err, args...)
	} else {
		s.log.InternalError("requests.approve: "+step+" failed", err, args...)
	}
	return multierror.Append(acc, fmt.Errorf("%s: %w", step, err))
}

func (s *Service) approved(id string, kind Kind, sideEffects error) *ApprovalResult {
	result := &ApprovalResult{
		RequestID:     id,
		Kind:          kind,
		Status:        StatusApproved,
		SideEffectErr: sideEffects,
	}
	s.recorder.RequestResolved(kind, StatusApproved, result.Partial())
	return result
}

func apartmentApprovedMessage(requestType ApartmentRequestType) (string, string) {
	if requestType == ApartmentRequestInvite {
		return "Apartment invitation accepted", "Your invitation to join the apartment was accepted."
	}
	return "Apartment request approved", "Your request to join the apartment was approved."
}
