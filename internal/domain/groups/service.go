package groups

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	notificationsdomain "roommates-app-go/internal/domain/notifications"
	"roommates-app-go/pkg/logger"
)

const defaultCacheTTL = 30 * time.Second

type Service struct {
	repo     Repository
	locker   Locker
	notifier Notifier
	cache    Cache
	cacheTTL time.Duration
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
	policy   *bluemonday.Policy
}

type Option func(*Service)

func WithLocker(locker Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, notifier Notifier, log logger.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Service{
		repo:     repo,
		locker:   noopLocker{},
		notifier: notifier,
		cache:    noopCache{},
		cacheTTL: defaultCacheTTL,
		recorder: noopRecorder{},
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		policy:   bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ActiveGroup(ctx context.Context, userID string) (string, bool, error) {
	return s.repo.GetActiveGroupID(ctx, userID)
}

func (s *Service) ActiveMembers(ctx context.Context, groupID string) ([]string, error) {
	return s.repo.ListActiveMembers(ctx, groupID)
}

// Members lists every membership row of the group, LEFT ones included.
func (s *Service) Members(ctx context.Context, groupID string) ([]Member, error) {
	return s.repo.ListMembers(ctx, groupID)
}

func (s *Service) MyGroup(ctx context.Context, userID string) (*GroupWithMembers, error) {
	groupID, ok, err := s.repo.GetActiveGroupID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInGroup
	}

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ListActiveMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return &GroupWithMembers{Group: *group, Members: members}, nil
}

// SharedProfile returns the user's group when it is a real shared profile
// (two or more ACTIVE members) and nil otherwise.
func (s *Service) SharedProfile(ctx context.Context, userID string) (*Snapshot, error) {
	if cached, ok := s.cache.GetByUserID(userID); ok {
		if cached.GroupID == "" {
			return nil, nil
		}
		return cached, nil
	}

	snapshot := &Snapshot{}
	groupID, ok, err := s.repo.GetActiveGroupID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		members, err := s.repo.ListActiveMembers(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if len(members) >= 2 {
			snapshot = &Snapshot{GroupID: groupID, Members: members}
		}
	}

	s.cache.SetByUserID(userID, snapshot, s.cacheTTL)
	if snapshot.GroupID == "" {
		return nil, nil
	}
	return snapshot, nil
}

func (s *Service) ListInvites(ctx context.Context, userID string) (*InviteLists, error) {
	received, err := s.repo.ListInvitesByInvitee(ctx, userID)
	if err != nil {
		return nil, err
	}
	sent, err := s.repo.ListInvitesByInviter(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InviteLists{Received: received, Sent: sent}, nil
}

// SendInvite proposes a merge from inviterID to inviteeID. An inviter without
// a group gets a PENDING solo group that the invite hangs off.
func (s *Service) SendInvite(ctx context.Context, inviterID, inviteeID string) (*Invite, error) {
	inviterID = strings.TrimSpace(inviterID)
	inviteeID = strings.TrimSpace(inviteeID)
	if inviterID == "" || inviteeID == "" {
		return nil, fmt.Errorf("%w: inviter and invitee are required", ErrInvalidInvite)
	}
	if inviterID == inviteeID {
		return nil, fmt.Errorf("%w: cannot invite yourself", ErrInvalidInvite)
	}

	var result *Invite
	err := s.locker.Lock(ctx, userLockKeys(inviterID, inviteeID), func(ctx context.Context) error {
		inviterGroupID, hasInviterGroup, err := s.repo.GetActiveGroupID(ctx, inviterID)
		if err != nil {
			return err
		}
		inviteeGroupID, hasInviteeGroup, err := s.repo.GetActiveGroupID(ctx, inviteeID)
		if err != nil {
			return err
		}
		if hasInviterGroup && hasInviteeGroup && inviterGroupID == inviteeGroupID {
			return ErrAlreadyMerged
		}

		union := newMemberSet(inviterID, inviteeID)
		if hasInviterGroup {
			if err := s.addActiveMembers(ctx, union, inviterGroupID); err != nil {
				return err
			}
		}
		if hasInviteeGroup {
			if err := s.addActiveMembers(ctx, union, inviteeGroupID); err != nil {
				return err
			}
		}
		if union.len() > MaxGroupMembers {
			return capacityError(union.len())
		}

		if hasInviterGroup {
			existing, err := s.repo.FindPendingInvite(ctx, inviterGroupID, inviteeID)
			if err != nil {
				return err
			}
			if existing != nil {
				return ErrDuplicateInvite
			}
		} else {
			group, err := s.createGroup(ctx, inviterID, GroupStatusPending)
			if err != nil {
				return err
			}
			if err := s.activate(ctx, group.ID, inviterID); err != nil {
				return err
			}
			inviterGroupID = group.ID
		}

		invite := &Invite{
			ID:        uuid.NewString(),
			GroupID:   inviterGroupID,
			InviterID: inviterID,
			InviteeID: inviteeID,
			Status:    InviteStatusPending,
			CreatedAt: s.now(),
		}
		if err := s.repo.CreateInvite(ctx, invite); err != nil {
			return err
		}

		result = invite
		return nil
	})
	if err != nil {
		if isCapacityError(err) {
			s.recorder.MergeRejected("capacity")
		}
		return nil, err
	}

	s.cache.Clear()
	s.notify(ctx, "groups.send_invite", notificationsdomain.Message{
		SenderID:    inviterID,
		RecipientID: inviteeID,
		Title:       "New profile merge request",
		Description: "Someone wants to merge their profile with yours.",
	}, "group-invite-sent:"+result.ID)

	return result, nil
}

func (s *Service) LeaveGroup(ctx context.Context, userID string) error {
	err := s.locker.Lock(ctx, userLockKeys(userID), func(ctx context.Context) error {
		groupID, ok, err := s.repo.GetActiveGroupID(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInGroup
		}
		return s.repo.SetMembershipStatus(ctx, groupID, userID, MemberStatusLeft)
	})
	if err != nil {
		return err
	}

	s.cache.Clear()
	return nil
}

func (s *Service) RenameGroup(ctx context.Context, userID, name string) (*Group, error) {
	name = strings.TrimSpace(s.policy.Sanitize(name))
	if name == "" || utf8.RuneCountInString(name) > maxGroupNameLength {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidName, maxGroupNameLength)
	}

	groupID, ok, err := s.repo.GetActiveGroupID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInGroup
	}

	if err := s.repo.UpdateGroupName(ctx, groupID, name); err != nil {
		return nil, err
	}
	return s.repo.GetGroup(ctx, groupID)
}

func (s *Service) createGroup(ctx context.Context, createdBy string, status GroupStatus) (*Group, error) {
	group := &Group{
		ID:        uuid.NewString(),
		CreatedBy: createdBy,
		Status:    status,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// activate leaves (group, user) with exactly one ACTIVE row: insert-if-absent,
// then update-if-present to flip a LEFT row back.
func (s *Service) activate(ctx context.Context, groupID, userID string) error {
	member := &Member{
		GroupID: groupID,
		UserID:  userID,
		Status:  MemberStatusActive,
	}
	if err := s.repo.InsertMembership(ctx, member); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	if err := s.repo.SetMembershipStatus(ctx, groupID, userID, MemberStatusActive); err != nil {
		return fmt.Errorf("activate membership: %w", err)
	}
	return nil
}

func (s *Service) markGroupActive(ctx context.Context, groupID string) error {
	return s.repo.UpdateGroupStatus(ctx, groupID, GroupStatusActive)
}

func (s *Service) addActiveMembers(ctx context.Context, set *memberSet, groupID string) error {
	members, err := s.repo.ListActiveMembers(ctx, groupID)
	if err != nil {
		return err
	}
	set.add(members...)
	return nil
}

// deleteGroupCascade removes a transient group. keepInviteID survives so the
// invite that triggered the cleanup keeps its terminal status.
func (s *Service) deleteGroupCascade(ctx context.Context, groupID, keepInviteID string) error {
	if err := s.repo.DeleteInvitesByGroup(ctx, groupID, keepInviteID); err != nil {
		return fmt.Errorf("delete group invites: %w", err)
	}
	if err := s.repo.DeleteMembershipsByGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group memberships: %w", err)
	}
	if err := s.repo.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, op string, msg notificationsdomain.Message, eventKey string) {
	if err := s.notifier.SendOnce(ctx, msg, eventKey); err != nil {
		s.log.InternalError(op+": notification failed", err, "recipient_id", msg.RecipientID, "event_key", eventKey)
	}
}

func capacityError(size int) error {
	return fmt.Errorf("%w: shared profile would have %d members (max %d)", ErrCapacityExceeded, size, MaxGroupMembers)
}

func userLockKeys(userIDs ...string) []string {
	return lockKeys("profile-user:", userIDs)
}

func groupLockKeys(groupIDs ...string) []string {
	return lockKeys("profile-group:", groupIDs)
}

func lockKeys(prefix string, ids []string) []string {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, prefix+id)
	}
	sort.Strings(keys)
	return keys
}

// memberSet keeps insertion order so merged groups list members predictably.
type memberSet struct {
	order []string
	seen  map[string]struct{}
}

func newMemberSet(ids ...string) *memberSet {
	set := &memberSet{seen: make(map[string]struct{}, MaxGroupMembers+2)}
	set.add(ids...)
	return set
}

func (m *memberSet) add(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.seen[id]; ok {
			continue
		}
		m.seen[id] = struct{}{}
		m.order = append(m.order, id)
	}
}

func (m *memberSet) len() int {
	return len(m.order)
}

func (m *memberSet) list() []string {
	result := make([]string, len(m.order))
	copy(result, m.order)
	return result
}
