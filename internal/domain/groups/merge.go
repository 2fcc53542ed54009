package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	notificationsdomain "roommates-app-go/internal/domain/notifications"
)

// mergeNamespace seeds the IDs of groups created by an accept, so every
// attempt at the same invite targets the same group.
var mergeNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

type mergePlan struct {
	invite          *Invite
	approverID      string
	approverGroupID string
	inviterGroupID  string
	// collapseGroupID is the inviter's solo group, deleted once the plan is
	// known to fit.
	collapseGroupID string
	// targetGroupID is set when the accept builds a new group.
	targetGroupID string
	scenario      Scenario
	union         []string
}

func mergeTargetID(inviteID string) string {
	return uuid.NewSHA1(mergeNamespace, []byte(inviteID)).String()
}

// AcceptInvite runs the merge state machine for inviteID on behalf of
// approverID. A capacity failure leaves the store untouched and the invite
// PENDING. The invite turns ACCEPTED only after every membership write has
// landed, so a failed call can be retried until it converges. Accepting an
// ACCEPTED invite returns the current group unchanged.
func (s *Service) AcceptInvite(ctx context.Context, inviteID, approverID string) (*MergeResult, error) {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite.InviteeID != approverID {
		return nil, ErrForbidden
	}
	switch invite.Status {
	case InviteStatusAccepted:
		return s.acceptedResult(ctx, invite)
	case InviteStatusDeclined:
		return nil, ErrInviteResolved
	}

	var result *MergeResult
	err = s.locker.Lock(ctx, userLockKeys(invite.InviterID, invite.InviteeID), func(ctx context.Context) error {
		var err error
		result, err = s.acceptLocked(ctx, inviteID, approverID)
		return err
	})
	if err != nil {
		if isCapacityError(err) {
			s.recorder.MergeRejected("capacity")
			s.log.BusinessError("groups.accept: capacity exceeded", err, "invite_id", inviteID, "approver_id", approverID)
			return nil, err
		}
		// Some writes may have landed before the failure.
		s.cache.Clear()
		return nil, err
	}
	if result.Scenario == ScenarioAlreadyAccepted {
		return result, nil
	}

	s.cache.Clear()
	s.recorder.MergeCompleted(result.Scenario)
	s.log.Info("groups.accept: merge completed",
		"invite_id", inviteID,
		"group_id", result.GroupID,
		"scenario", string(result.Scenario),
		"members", len(result.Members),
	)
	s.notify(ctx, "groups.accept", notificationsdomain.Message{
		SenderID:    approverID,
		RecipientID: invite.InviterID,
		Title:       "Profile merge approved",
		Description: "Your profile merge request was approved. You now share one profile.",
	}, "group-invite-accepted:"+invite.ID)

	return result, nil
}

// DeclineInvite marks the invite DECLINED and drops the inviter's solo group
// when nothing else hangs off it.
func (s *Service) DeclineInvite(ctx context.Context, inviteID, approverID string) error {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.InviteeID != approverID {
		return ErrForbidden
	}
	switch invite.Status {
	case InviteStatusDeclined:
		return nil
	case InviteStatusAccepted:
		return ErrInviteResolved
	}

	err = s.locker.Lock(ctx, userLockKeys(invite.InviterID, invite.InviteeID), func(ctx context.Context) error {
		// An accept that stopped halfway has already moved members; only a
		// retried accept can finish it.
		_, started, err := s.mergeJournal(ctx, mergeTargetID(invite.ID))
		if err != nil {
			return err
		}
		if started {
			return ErrInviteResolved
		}
		return s.resolveInvite(ctx, invite.ID, InviteStatusDeclined)
	})
	if err != nil {
		return err
	}
	s.recorder.MergeRejected("declined")

	if err := s.collapseSoloGroup(ctx, invite); err != nil {
		s.log.InternalError("groups.decline: solo group cleanup failed", err, "invite_id", invite.ID, "inviter_id", invite.InviterID)
	}
	s.cache.Clear()

	s.notify(ctx, "groups.decline", notificationsdomain.Message{
		SenderID:    approverID,
		RecipientID: invite.InviterID,
		Title:       "Profile merge declined",
		Description: "Your profile merge request was declined.",
	}, "group-invite-declined:"+invite.ID)

	return nil
}

func (s *Service) acceptLocked(ctx context.Context, inviteID, approverID string) (*MergeResult, error) {
	// Re-read under the lock: a concurrent call may have resolved the invite.
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	switch invite.Status {
	case InviteStatusAccepted:
		return s.acceptedResult(ctx, invite)
	case InviteStatusDeclined:
		return nil, ErrInviteResolved
	}

	approverGroupID, _, err := s.repo.GetActiveGroupID(ctx, approverID)
	if err != nil {
		return nil, err
	}
	inviterGroupID, _, err := s.repo.GetActiveGroupID(ctx, invite.InviterID)
	if err != nil {
		return nil, err
	}

	var result *MergeResult
	lockKeys := groupLockKeys(approverGroupID, inviterGroupID, mergeTargetID(invite.ID))
	err = s.locker.Lock(ctx, lockKeys, func(ctx context.Context) error {
		plan, err := s.planMerge(ctx, invite, approverID)
		if err != nil {
			return err
		}
		result, err = s.applyMerge(ctx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// planMerge reads everything the merge needs and runs the capacity guard. It
// performs no writes.
func (s *Service) planMerge(ctx context.Context, invite *Invite, approverID string) (*mergePlan, error) {
	plan := &mergePlan{invite: invite, approverID: approverID}
	union := newMemberSet(invite.InviterID, invite.InviteeID, approverID)

	approverGroupID, hasApproverGroup, err := s.repo.GetActiveGroupID(ctx, approverID)
	if err != nil {
		return nil, err
	}
	inviterGroupID, hasInviterGroup, err := s.repo.GetActiveGroupID(ctx, invite.InviterID)
	if err != nil {
		return nil, err
	}

	targetID := mergeTargetID(invite.ID)
	journal, resumed, err := s.mergeJournal(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if resumed {
		// An earlier attempt stopped halfway. Its target rows list everyone it
		// meant to move; members still sitting in a source group join them.
		union.add(journal...)
		for _, groupID := range []string{approverGroupID, inviterGroupID} {
			if groupID == "" || groupID == targetID {
				continue
			}
			if err := s.addActiveMembers(ctx, union, groupID); err != nil {
				return nil, err
			}
		}
		if hasApproverGroup && approverGroupID != targetID {
			plan.approverGroupID = approverGroupID
		}
		if hasInviterGroup && inviterGroupID != targetID {
			plan.inviterGroupID = inviterGroupID
		}
		plan.targetGroupID = targetID
		plan.scenario = ScenarioMergedGroups
		if union.len() == 2 {
			plan.scenario = ScenarioCreated
		}
		return plan, checkUnion(plan, union)
	}

	if hasApproverGroup {
		plan.approverGroupID = approverGroupID
		if err := s.addActiveMembers(ctx, union, approverGroupID); err != nil {
			return nil, err
		}
	}

	if hasInviterGroup {
		members, err := s.repo.ListActiveMembers(ctx, inviterGroupID)
		if err != nil {
			return nil, err
		}
		solo := len(members) == 1 && members[0] == invite.InviterID
		if solo && inviterGroupID != approverGroupID {
			plan.collapseGroupID = inviterGroupID
		} else {
			plan.inviterGroupID = inviterGroupID
			union.add(members...)
		}
	}

	switch {
	case plan.approverGroupID == "" && plan.inviterGroupID == "":
		plan.scenario = ScenarioCreated
		plan.targetGroupID = targetID
	case plan.inviterGroupID == "":
		plan.scenario = ScenarioJoinedApproverGroup
	case plan.approverGroupID == "":
		plan.scenario = ScenarioJoinedInviterGroup
	case plan.approverGroupID == plan.inviterGroupID:
		plan.scenario = ScenarioAlreadyMerged
	default:
		plan.scenario = ScenarioMergedGroups
		plan.targetGroupID = targetID
	}
	return plan, checkUnion(plan, union)
}

func checkUnion(plan *mergePlan, union *memberSet) error {
	plan.union = union.list()
	if len(plan.union) > MaxGroupMembers {
		return capacityError(len(plan.union))
	}
	return nil
}

// mergeJournal returns every membership row of the target group, if an
// earlier attempt already created it.
func (s *Service) mergeJournal(ctx context.Context, targetID string) ([]string, bool, error) {
	if _, err := s.repo.GetGroup(ctx, targetID); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	rows, err := s.repo.ListMembers(ctx, targetID)
	if err != nil {
		return nil, false, err
	}
	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	return userIDs, true, nil
}

func (s *Service) applyMerge(ctx context.Context, plan *mergePlan) (*MergeResult, error) {
	invite := plan.invite

	if plan.collapseGroupID != "" {
		if err := s.deleteGroupCascade(ctx, plan.collapseGroupID, invite.ID); err != nil {
			return nil, fmt.Errorf("collapse solo group: %w", err)
		}
	}

	result := &MergeResult{InviteID: invite.ID, Scenario: plan.scenario}

	switch plan.scenario {
	case ScenarioCreated, ScenarioMergedGroups:
		if err := s.moveInto(ctx, plan); err != nil {
			return nil, err
		}
		result.GroupID = plan.targetGroupID

	case ScenarioJoinedApproverGroup:
		if err := s.activate(ctx, plan.approverGroupID, invite.InviterID); err != nil {
			return nil, err
		}
		if err := s.markGroupActive(ctx, plan.approverGroupID); err != nil {
			return nil, err
		}
		result.GroupID = plan.approverGroupID

	case ScenarioJoinedInviterGroup:
		if err := s.activate(ctx, plan.inviterGroupID, invite.InviteeID); err != nil {
			return nil, err
		}
		if err := s.markGroupActive(ctx, plan.inviterGroupID); err != nil {
			return nil, err
		}
		result.GroupID = plan.inviterGroupID

	case ScenarioAlreadyMerged:
		// A retry after the join landed but before the status write.
		if err := s.markGroupActive(ctx, plan.approverGroupID); err != nil {
			return nil, err
		}
		result.GroupID = plan.approverGroupID
	}

	if err := s.resolveInvite(ctx, invite.ID, InviteStatusAccepted); err != nil {
		return nil, err
	}

	if plan.scenario == ScenarioMergedGroups {
		for _, groupID := range []string{plan.approverGroupID, plan.inviterGroupID} {
			if groupID != "" {
				s.discardGroup(ctx, groupID, invite.ID)
			}
		}
	}

	members, err := s.repo.ListActiveMembers(ctx, result.GroupID)
	if err != nil {
		s.log.InternalError("groups.accept: list merged members failed", err, "group_id", result.GroupID)
		members = plan.union
	}
	result.Members = members
	return result, nil
}

// moveInto brings the whole union into the target group. Target rows are
// written LEFT before any source membership is retired, so they double as the
// member list a retry resumes from. Each user then has their current ACTIVE
// row retired before the target row is activated, since a user may hold only
// one ACTIVE row.
func (s *Service) moveInto(ctx context.Context, plan *mergePlan) error {
	targetID := plan.targetGroupID
	if err := s.ensureGroup(ctx, targetID, plan.invite.InviterID); err != nil {
		return err
	}

	for _, userID := range plan.union {
		member := &Member{GroupID: targetID, UserID: userID, Status: MemberStatusLeft}
		if err := s.repo.InsertMembership(ctx, member); err != nil {
			return fmt.Errorf("record merge member: %w", err)
		}
	}

	for _, userID := range plan.union {
		currentID, ok, err := s.repo.GetActiveGroupID(ctx, userID)
		if err != nil {
			return err
		}
		if ok && currentID != targetID {
			if err := s.repo.SetMembershipStatus(ctx, currentID, userID, MemberStatusLeft); err != nil {
				return fmt.Errorf("retire membership: %w", err)
			}
		}
		if err := s.activate(ctx, targetID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureGroup(ctx context.Context, groupID, createdBy string) error {
	_, err := s.repo.GetGroup(ctx, groupID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return err
	}

	group := &Group{
		ID:        groupID,
		CreatedBy: createdBy,
		Status:    GroupStatusActive,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// discardGroup deletes a merged-away group, keeping the accepted invite.
// Every failure is logged and ignored: LEFT memberships already make the
// group inert.
func (s *Service) discardGroup(ctx context.Context, groupID, keepInviteID string) {
	if err := s.repo.DeleteInvitesByGroup(ctx, groupID, keepInviteID); err != nil {
		s.log.InternalError("groups.merge: delete source invites failed", err, "group_id", groupID)
	}
	if err := s.repo.DeleteMembershipsByGroup(ctx, groupID); err != nil {
		s.log.InternalError("groups.merge: delete source memberships failed", err, "group_id", groupID)
	}
	if err := s.repo.DeleteGroup(ctx, groupID); err != nil {
		s.log.InternalError("groups.merge: delete source group failed", err, "group_id", groupID)
	}
}

func (s *Service) collapseSoloGroup(ctx context.Context, invite *Invite) error {
	return s.locker.Lock(ctx, userLockKeys(invite.InviterID), func(ctx context.Context) error {
		groupID, ok, err := s.repo.GetActiveGroupID(ctx, invite.InviterID)
		if err != nil || !ok {
			return err
		}

		return s.locker.Lock(ctx, groupLockKeys(groupID), func(ctx context.Context) error {
			members, err := s.repo.ListActiveMembers(ctx, groupID)
			if err != nil {
				return err
			}
			if len(members) != 1 || members[0] != invite.InviterID {
				return nil
			}

			pending, err := s.repo.CountPendingInvites(ctx, groupID, invite.ID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return nil
			}

			return s.deleteGroupCascade(ctx, groupID, invite.ID)
		})
	})
}

// resolveInvite moves a PENDING invite to status. Finding it already in
// status counts as success.
func (s *Service) resolveInvite(ctx context.Context, inviteID string, status InviteStatus) error {
	updated, err := s.repo.ResolveInvite(ctx, inviteID, status, s.now())
	if err != nil {
		return fmt.Errorf("resolve invite: %w", err)
	}
	if updated {
		return nil
	}

	current, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if current.Status == status {
		return nil
	}
	return ErrInviteResolved
}

func (s *Service) acceptedResult(ctx context.Context, invite *Invite) (*MergeResult, error) {
	result := &MergeResult{InviteID: invite.ID, Scenario: ScenarioAlreadyAccepted}

	groupID, ok, err := s.repo.GetActiveGroupID(ctx, invite.InviteeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}

	members, err := s.repo.ListActiveMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	result.GroupID = groupID
	result.Members = members
	return result, nil
}

func isCapacityError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}
