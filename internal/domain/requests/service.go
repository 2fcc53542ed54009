package requests

import (
	"context"
	"sort"

	"roommates-app-go/pkg/logger"
)

type Service struct {
	repo     Repository
	groups   Groups
	profiles Profiles
	notifier Notifier
	recorder Recorder
	log      logger.Logger
}

type Option func(*Service)

func WithProfiles(profiles Profiles) Option {
	return func(s *Service) {
		if profiles != nil {
			s.profiles = profiles
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

func NewService(repo Repository, groups Groups, notifier Notifier, log logger.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Service{
		repo:     repo,
		groups:   groups,
		profiles: noopProfiles{},
		notifier: notifier,
		recorder: noopRecorder{},
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRequests fetches the user's inbox and returns the items matching
// criteria, newest first.
func (s *Service) ListRequests(ctx context.Context, userID string, criteria Criteria) ([]UnifiedRequest, error) {
	inbox, err := s.Inbox(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := Filter(*inbox, criteria)
	s.enrich(ctx, items, criteria.Tab)
	return items, nil
}

// Inbox gathers every request kind addressed to or sent by userID. Items that
// are NOT_RELEVANT are dropped from both lists.
func (s *Service) Inbox(ctx context.Context, userID string) (*Inbox, error) {
	groupID, _, err := s.groups.ActiveGroup(ctx, userID)
	if err != nil {
		return nil, err
	}

	incomingApartments, err := s.repo.ListApartmentRequestsByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	sentApartments, err := s.repo.ListApartmentRequestsBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	incomingMatches, err := s.repo.ListMatchesByReceiver(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	sentMatches, err := s.repo.ListMatchesBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	invites, err := s.groups.ListInvites(ctx, userID)
	if err != nil {
		return nil, err
	}

	inbox := &Inbox{
		Incoming: make([]UnifiedRequest, 0, len(incomingApartments)+len(incomingMatches)+len(invites.Received)),
		Sent:     make([]UnifiedRequest, 0, len(sentApartments)+len(sentMatches)+len(invites.Sent)),
	}

	for _, req := range incomingApartments {
		inbox.Incoming = append(inbox.Incoming, fromApartmentRequest(req))
	}
	for _, match := range incomingMatches {
		inbox.Incoming = append(inbox.Incoming, fromMatch(match, s.displayRecipient(ctx, match, userID)))
	}
	for _, invite := range invites.Received {
		inbox.Incoming = append(inbox.Incoming, fromInvite(invite))
	}

	for _, req := range sentApartments {
		inbox.Sent = append(inbox.Sent, fromApartmentRequest(req))
	}
	for _, match := range sentMatches {
		inbox.Sent = append(inbox.Sent, fromMatch(match, s.displayRecipient(ctx, match, userID)))
	}
	for _, invite := range invites.Sent {
		inbox.Sent = append(inbox.Sent, fromInvite(invite))
	}

	inbox.Incoming = dropNotRelevant(inbox.Incoming)
	inbox.Sent = dropNotRelevant(inbox.Sent)
	sortNewestFirst(inbox.Incoming)
	sortNewestFirst(inbox.Sent)
	return inbox, nil
}

// displayRecipient picks the member shown as the receiver of a group-targeted
// match: another ACTIVE member, then any other member, then anyone at all.
// The choice is only used for display.
func (s *Service) displayRecipient(ctx context.Context, match Match, actorID string) string {
	if deref(match.ReceiverID) != "" {
		return ""
	}
	groupID := deref(match.ReceiverGroupID)
	if groupID == "" {
		return ""
	}

	active, err := s.groups.ActiveMembers(ctx, groupID)
	if err != nil {
		s.log.InternalError("requests.inbox: resolve group receiver failed", err, "match_id", match.ID, "group_id", groupID)
		return ""
	}
	for _, userID := range active {
		if userID != actorID {
			return userID
		}
	}

	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		s.log.InternalError("requests.inbox: list group members failed", err, "match_id", match.ID, "group_id", groupID)
		members = nil
	}
	for _, member := range members {
		if member.UserID != actorID {
			return member.UserID
		}
	}

	if len(active) > 0 {
		return active[0]
	}
	if len(members) > 0 {
		return members[0].UserID
	}
	return ""
}

// enrich attaches the merged profile of each item's counterparty. Failures
// leave the item unenriched.
func (s *Service) enrich(ctx context.Context, items []UnifiedRequest, tab Tab) {
	snapshots := make(map[string]*MergedProfile)
	for i := range items {
		counterparty := items[i].SenderID
		if tab == TabSent {
			counterparty = items[i].RecipientID
		}
		if counterparty == "" {
			continue
		}

		profile, ok := snapshots[counterparty]
		if !ok {
			profile = s.mergedProfile(ctx, counterparty)
			snapshots[counterparty] = profile
		}
		items[i].MergedProfile = profile
	}
}

func (s *Service) mergedProfile(ctx context.Context, userID string) *MergedProfile {
	snapshot, err := s.groups.SharedProfile(ctx, userID)
	if err != nil {
		s.log.InternalError("requests.enrich: shared profile lookup failed", err, "user_id", userID)
		return nil
	}
	if snapshot == nil {
		return nil
	}

	profiles, err := s.profiles.Profiles(ctx, snapshot.Members)
	if err != nil {
		s.log.InternalError("requests.enrich: profile lookup failed", err, "user_id", userID, "group_id", snapshot.GroupID)
		profiles = nil
	}

	merged := &MergedProfile{
		GroupID: snapshot.GroupID,
		Members: make([]ProfileMember, 0, len(snapshot.Members)),
	}
	for _, memberID := range snapshot.Members {
		member := ProfileMember{UserID: memberID}
		if profile, ok := profiles[memberID]; ok {
			member.Name = profile.DisplayName()
			if profile.AvatarURL != nil {
				member.AvatarURL = *profile.AvatarURL
			}
		}
		merged.Members = append(merged.Members, member)
	}
	return merged
}

func dropNotRelevant(items []UnifiedRequest) []UnifiedRequest {
	result := items[:0]
	for _, item := range items {
		if item.Status == StatusNotRelevant {
			continue
		}
		result = append(result, item)
	}
	return result
}

func sortNewestFirst(items []UnifiedRequest) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
