package groups

import (
	"context"
	"time"

	notificationsdomain "roommates-app-go/internal/domain/notifications"
)

type Repository interface {
	// GetActiveGroupID reports the group holding the user's ACTIVE membership.
	GetActiveGroupID(ctx context.Context, userID string) (string, bool, error)
	ListActiveMembers(ctx context.Context, groupID string) ([]string, error)
	ListMembers(ctx context.Context, groupID string) ([]Member, error)
	GetGroup(ctx context.Context, groupID string) (*Group, error)
	CreateGroup(ctx context.Context, group *Group) error
	UpdateGroupStatus(ctx context.Context, groupID string, status GroupStatus) error
	UpdateGroupName(ctx context.Context, groupID, name string) error
	// InsertMembership ignores an existing (group_id, user_id) row.
	InsertMembership(ctx context.Context, member *Member) error
	SetMembershipStatus(ctx context.Context, groupID, userID string, status MemberStatus) error
	DeleteGroup(ctx context.Context, groupID string) error
	DeleteMembershipsByGroup(ctx context.Context, groupID string) error
	DeleteInvitesByGroup(ctx context.Context, groupID, keepInviteID string) error
	GetInvite(ctx context.Context, inviteID string) (*Invite, error)
	CreateInvite(ctx context.Context, invite *Invite) error
	FindPendingInvite(ctx context.Context, groupID, inviteeID string) (*Invite, error)
	CountPendingInvites(ctx context.Context, groupID, excludeInviteID string) (int64, error)
	// ResolveInvite moves a PENDING invite to status and reports whether it did.
	ResolveInvite(ctx context.Context, inviteID string, status InviteStatus, respondedAt time.Time) (bool, error)
	ListInvitesByInvitee(ctx context.Context, inviteeID string) ([]Invite, error)
	ListInvitesByInviter(ctx context.Context, inviterID string) ([]Invite, error)
	// ListTransientGroups returns groups created before the cutoff with fewer
	// than two ACTIVE members and no PENDING invites.
	ListTransientGroups(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

// Locker serializes orchestration calls touching the same users or groups.
type Locker interface {
	Lock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type Notifier interface {
	SendOnce(ctx context.Context, msg notificationsdomain.Message, eventKey string) error
}

type Recorder interface {
	MergeCompleted(scenario Scenario)
	MergeRejected(reason string)
	GroupsSwept(count int)
}

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopNotifier struct{}

func (noopNotifier) SendOnce(context.Context, notificationsdomain.Message, string) error {
	return nil
}

type noopRecorder struct{}

func (noopRecorder) MergeCompleted(Scenario) {}

func (noopRecorder) MergeRejected(string) {}

func (noopRecorder) GroupsSwept(int) {}
