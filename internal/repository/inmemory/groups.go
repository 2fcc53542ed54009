package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	groupsdomain "roommates-app-go/internal/domain/groups"
)

// GroupsRepository keeps groups, memberships and invites in memory. It
// enforces the same constraints as the Postgres schema: one ACTIVE membership
// per user and one PENDING invite per (group, invitee).
type GroupsRepository struct {
	mu      sync.RWMutex
	groups  map[string]groupsdomain.Group
	members map[string][]groupsdomain.Member
	invites map[string]groupsdomain.Invite
	// inviteOrder keeps listing order stable.
	inviteOrder []string
}

func NewGroupsRepository() *GroupsRepository {
	return &GroupsRepository{
		groups:  make(map[string]groupsdomain.Group),
		members: make(map[string][]groupsdomain.Member),
		invites: make(map[string]groupsdomain.Invite),
	}
}

func (r *GroupsRepository) GetActiveGroupID(_ context.Context, userID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groupID, ok := r.activeGroupLocked(userID)
	return groupID, ok, nil
}

func (r *GroupsRepository) ListActiveMembers(_ context.Context, groupID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.members[groupID]))
	for _, member := range r.members[groupID] {
		if member.Status == groupsdomain.MemberStatusActive {
			result = append(result, member.UserID)
		}
	}
	return result, nil
}

func (r *GroupsRepository) ListMembers(_ context.Context, groupID string) ([]groupsdomain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]groupsdomain.Member, len(r.members[groupID]))
	copy(result, r.members[groupID])
	return result, nil
}

func (r *GroupsRepository) GetGroup(_ context.Context, groupID string) (*groupsdomain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[groupID]
	if !ok {
		return nil, groupsdomain.ErrGroupNotFound
	}
	return &group, nil
}

func (r *GroupsRepository) CreateGroup(_ context.Context, group *groupsdomain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	group.UpdatedAt = group.CreatedAt
	r.groups[group.ID] = *group
	return nil
}

func (r *GroupsRepository) UpdateGroupStatus(_ context.Context, groupID string, status groupsdomain.GroupStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[groupID]
	if !ok {
		return nil
	}
	group.Status = status
	group.UpdatedAt = time.Now().UTC()
	r.groups[groupID] = group
	return nil
}

func (r *GroupsRepository) UpdateGroupName(_ context.Context, groupID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[groupID]
	if !ok {
		return groupsdomain.ErrGroupNotFound
	}
	group.Name = name
	group.UpdatedAt = time.Now().UTC()
	r.groups[groupID] = group
	return nil
}

func (r *GroupsRepository) InsertMembership(_ context.Context, member *groupsdomain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findMemberLocked(member.GroupID, member.UserID) >= 0 {
		return nil
	}
	if member.Status == groupsdomain.MemberStatusActive {
		if current, ok := r.activeGroupLocked(member.UserID); ok && current != member.GroupID {
			return groupsdomain.ErrMembershipConflict
		}
	}

	now := time.Now().UTC()
	row := *member
	row.JoinedAt = now
	row.UpdatedAt = now
	r.members[member.GroupID] = append(r.members[member.GroupID], row)
	return nil
}

func (r *GroupsRepository) SetMembershipStatus(_ context.Context, groupID, userID string, status groupsdomain.MemberStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.findMemberLocked(groupID, userID)
	if idx < 0 {
		return nil
	}
	if status == groupsdomain.MemberStatusActive {
		if current, ok := r.activeGroupLocked(userID); ok && current != groupID {
			return groupsdomain.ErrMembershipConflict
		}
	}

	r.members[groupID][idx].Status = status
	r.members[groupID][idx].UpdatedAt = time.Now().UTC()
	return nil
}

func (r *GroupsRepository) DeleteGroup(_ context.Context, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.groups, groupID)
	return nil
}

func (r *GroupsRepository) DeleteMembershipsByGroup(_ context.Context, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, groupID)
	return nil
}

func (r *GroupsRepository) DeleteInvitesByGroup(_ context.Context, groupID, keepInviteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.inviteOrder[:0]
	for _, id := range r.inviteOrder {
		invite := r.invites[id]
		if invite.GroupID == groupID && id != keepInviteID {
			delete(r.invites, id)
			continue
		}
		order = append(order, id)
	}
	r.inviteOrder = order
	return nil
}

func (r *GroupsRepository) GetInvite(_ context.Context, inviteID string) (*groupsdomain.Invite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invite, ok := r.invites[inviteID]
	if !ok {
		return nil, groupsdomain.ErrInviteNotFound
	}
	return &invite, nil
}

func (r *GroupsRepository) CreateInvite(_ context.Context, invite *groupsdomain.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if invite.Status == groupsdomain.InviteStatusPending {
		if _, ok := r.findPendingLocked(invite.GroupID, invite.InviteeID); ok {
			return groupsdomain.ErrDuplicateInvite
		}
	}
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}

	r.invites[invite.ID] = *invite
	r.inviteOrder = append(r.inviteOrder, invite.ID)
	return nil
}

func (r *GroupsRepository) FindPendingInvite(_ context.Context, groupID, inviteeID string) (*groupsdomain.Invite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invite, ok := r.findPendingLocked(groupID, inviteeID)
	if !ok {
		return nil, nil
	}
	return &invite, nil
}

func (r *GroupsRepository) CountPendingInvites(_ context.Context, groupID, excludeInviteID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, invite := range r.invites {
		if invite.GroupID == groupID && invite.ID != excludeInviteID && invite.Status == groupsdomain.InviteStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *GroupsRepository) ResolveInvite(_ context.Context, inviteID string, status groupsdomain.InviteStatus, respondedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	invite, ok := r.invites[inviteID]
	if !ok {
		return false, groupsdomain.ErrInviteNotFound
	}
	if invite.Status != groupsdomain.InviteStatusPending {
		return false, nil
	}

	invite.Status = status
	invite.RespondedAt = &respondedAt
	r.invites[inviteID] = invite
	return true, nil
}

func (r *GroupsRepository) ListInvitesByInvitee(_ context.Context, inviteeID string) ([]groupsdomain.Invite, error) {
	return r.listInvites(func(invite groupsdomain.Invite) bool {
		return invite.InviteeID == inviteeID
	}), nil
}

func (r *GroupsRepository) ListInvitesByInviter(_ context.Context, inviterID string) ([]groupsdomain.Invite, error) {
	return r.listInvites(func(invite groupsdomain.Invite) bool {
		return invite.InviterID == inviterID
	}), nil
}

func (r *GroupsRepository) ListTransientGroups(_ context.Context, createdBefore time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]groupsdomain.Group, 0)
	for _, group := range r.groups {
		if !group.CreatedAt.Before(createdBefore) {
			continue
		}

		active := 0
		for _, member := range r.members[group.ID] {
			if member.Status == groupsdomain.MemberStatusActive {
				active++
			}
		}
		if active >= 2 {
			continue
		}

		pending := false
		for _, invite := range r.invites {
			if invite.GroupID == group.ID && invite.Status == groupsdomain.InviteStatusPending {
				pending = true
				break
			}
		}
		if pending {
			continue
		}
		candidates = append(candidates, group)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]string, 0, len(candidates))
	for _, group := range candidates {
		result = append(result, group.ID)
	}
	return result, nil
}

func (r *GroupsRepository) listInvites(match func(groupsdomain.Invite) bool) []groupsdomain.Invite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]groupsdomain.Invite, 0)
	for i := len(r.inviteOrder) - 1; i >= 0; i-- {
		invite := r.invites[r.inviteOrder[i]]
		if match(invite) {
			result = append(result, invite)
		}
	}
	return result
}

func (r *GroupsRepository) activeGroupLocked(userID string) (string, bool) {
	for groupID, members := range r.members {
		for _, member := range members {
			if member.UserID == userID && member.Status == groupsdomain.MemberStatusActive {
				return groupID, true
			}
		}
	}
	return "", false
}

func (r *GroupsRepository) findMemberLocked(groupID, userID string) int {
	for i, member := range r.members[groupID] {
		if member.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *GroupsRepository) findPendingLocked(groupID, inviteeID string) (groupsdomain.Invite, bool) {
	for _, invite := range r.invites {
		if invite.GroupID == groupID && invite.InviteeID == inviteeID && invite.Status == groupsdomain.InviteStatusPending {
			return invite, true
		}
	}
	return groupsdomain.Invite{}, false
}
