package groups

import (
	"context"
	"fmt"
	"strings"
)

// LinkUsers makes ApproverID and OtherID ACTIVE members of one group. The
// target is the first existing group that still fits both users, tried in the
// order inviter, approver, other; a new group is created when none fits.
// Groups are never unioned here: only the two users move.
func (s *Service) LinkUsers(ctx context.Context, in LinkInput) (*LinkResult, error) {
	in.InviterID = strings.TrimSpace(in.InviterID)
	in.ApproverID = strings.TrimSpace(in.ApproverID)
	in.OtherID = strings.TrimSpace(in.OtherID)
	if in.ApproverID == "" || in.OtherID == "" {
		return nil, fmt.Errorf("%w: both users are required", ErrInvalidInvite)
	}
	if in.ApproverID == in.OtherID {
		return &LinkResult{}, nil
	}

	var result *LinkResult
	err := s.locker.Lock(ctx, userLockKeys(in.ApproverID, in.OtherID), func(ctx context.Context) error {
		approverGroupID, _, err := s.repo.GetActiveGroupID(ctx, in.ApproverID)
		if err != nil {
			return err
		}
		otherGroupID, _, err := s.repo.GetActiveGroupID(ctx, in.OtherID)
		if err != nil {
			return err
		}

		if approverGroupID != "" && approverGroupID == otherGroupID {
			if err := s.markGroupActive(ctx, approverGroupID); err != nil {
				return err
			}
			result = &LinkResult{GroupID: approverGroupID}
			return nil
		}

		return s.locker.Lock(ctx, groupLockKeys(approverGroupID, otherGroupID), func(ctx context.Context) error {
			var err error
			result, err = s.linkLocked(ctx, in, approverGroupID, otherGroupID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.cache.Clear()
		s.log.Info("groups.link: users linked",
			"group_id", result.GroupID,
			"approver_id", in.ApproverID,
			"other_id", in.OtherID,
		)
	}
	return result, nil
}

func (s *Service) linkLocked(ctx context.Context, in LinkInput, approverGroupID, otherGroupID string) (*LinkResult, error) {
	current := map[string]string{
		in.ApproverID: approverGroupID,
		in.OtherID:    otherGroupID,
	}

	candidates := make([]string, 0, 3)
	if groupID, ok := current[in.InviterID]; ok && groupID != "" {
		candidates = append(candidates, groupID)
	}
	candidates = append(candidates, approverGroupID, otherGroupID)

	targetID := ""
	for _, groupID := range candidates {
		if groupID == "" {
			continue
		}
		set := newMemberSet(in.ApproverID, in.OtherID)
		if err := s.addActiveMembers(ctx, set, groupID); err != nil {
			return nil, err
		}
		if set.len() <= MaxGroupMembers {
			targetID = groupID
			break
		}
	}

	if targetID == "" {
		group, err := s.createGroup(ctx, in.ApproverID, GroupStatusActive)
		if err != nil {
			return nil, err
		}
		targetID = group.ID
	}

	for _, userID := range []string{in.ApproverID, in.OtherID} {
		groupID := current[userID]
		if groupID == targetID {
			continue
		}
		if groupID != "" {
			if err := s.repo.SetMembershipStatus(ctx, groupID, userID, MemberStatusLeft); err != nil {
				return nil, fmt.Errorf("leave previous group: %w", err)
			}
		}
		if err := s.activate(ctx, targetID, userID); err != nil {
			return nil, err
		}
	}

	if err := s.markGroupActive(ctx, targetID); err != nil {
		return nil, err
	}
	return &LinkResult{GroupID: targetID, Changed: true}, nil
}
