package groups

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
)

const defaultSweepBatchSize = 100

// SweepSoloGroups deletes groups that never became a shared profile: fewer than
// two ACTIVE members, no PENDING invites, older than gracePeriod. Each
// candidate is re-checked under its locks before deletion.
func (s *Service) SweepSoloGroups(ctx context.Context, gracePeriod time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepBatchSize
	}

	groupIDs, err := s.repo.ListTransientGroups(ctx, s.now().Add(-gracePeriod), limit)
	if err != nil {
		return 0, err
	}

	var result error
	swept := 0
	for _, groupID := range groupIDs {
		deleted, err := s.sweepGroup(ctx, groupID)
		if err != nil {
			s.log.InternalError("groups.sweep: delete failed", err, "group_id", groupID)
			result = multierror.Append(result, err)
			continue
		}
		if deleted {
			swept++
		}
	}

	if swept > 0 {
		s.cache.Clear()
		s.recorder.GroupsSwept(swept)
	}
	s.log.Debug("groups.sweep: finished", "candidates", len(groupIDs), "swept", swept)
	return swept, result
}

func (s *Service) sweepGroup(ctx context.Context, groupID string) (bool, error) {
	members, err := s.repo.ListActiveMembers(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(members) >= 2 {
		return false, nil
	}

	deleted := false
	err = s.locker.Lock(ctx, userLockKeys(members...), func(ctx context.Context) error {
		return s.locker.Lock(ctx, groupLockKeys(groupID), func(ctx context.Context) error {
			current, err := s.repo.ListActiveMembers(ctx, groupID)
			if err != nil {
				return err
			}
			if len(current) >= 2 {
				return nil
			}
			pending, err := s.repo.CountPendingInvites(ctx, groupID, "")
			if err != nil {
				return err
			}
			if pending > 0 {
				return nil
			}
			if err := s.deleteGroupCascade(ctx, groupID, ""); err != nil {
				return err
			}
			deleted = true
			return nil
		})
	})
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	return deleted, err
}
