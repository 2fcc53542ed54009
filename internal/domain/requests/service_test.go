package requests_test

import (
	"context"
	"errors"
	"testing"
	"time"

	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	requestsdomain "roommates-app-go/internal/domain/requests"
	usersdomain "roommates-app-go/internal/domain/users"
	"roommates-app-go/internal/repository/inmemory"
	"roommates-app-go/pkg/logger"
)

type fixture struct {
	svc           *requestsdomain.Service
	repo          *inmemory.RequestsRepository
	groups        *groupsdomain.Service
	groupsRepo    *inmemory.GroupsRepository
	notifications *notificationsdomain.Service
	users         *usersdomain.Service
}

func newFixture(t *testing.T, wrap func(requestsdomain.Groups) requestsdomain.Groups) *fixture {
	t.Helper()
	log := logger.NewNop()

	notifications := notificationsdomain.NewService(inmemory.NewNotificationsRepository(), nil)
	groupsRepo := inmemory.NewGroupsRepository()
	groups := groupsdomain.NewService(groupsRepo, notifications, log, groupsdomain.WithLocker(inmemory.NewLocker()))
	users := usersdomain.NewService(inmemory.NewUsersRepository())
	repo := inmemory.NewRequestsRepository()

	var groupsPort requestsdomain.Groups = groups
	if wrap != nil {
		groupsPort = wrap(groups)
	}

	return &fixture{
		svc:           requestsdomain.NewService(repo, groupsPort, notifications, log, requestsdomain.WithProfiles(users)),
		repo:          repo,
		groups:        groups,
		groupsRepo:    groupsRepo,
		notifications: notifications,
		users:         users,
	}
}

func (f *fixture) seedGroup(t *testing.T, groupID string, members ...string) {
	t.Helper()
	ctx := context.Background()
	if err := f.groupsRepo.CreateGroup(ctx, &groupsdomain.Group{ID: groupID, CreatedBy: members[0], Status: groupsdomain.GroupStatusActive}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	for _, userID := range members {
		if err := f.groupsRepo.InsertMembership(ctx, &groupsdomain.Member{GroupID: groupID, UserID: userID, Status: groupsdomain.MemberStatusActive}); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
}

func (f *fixture) notificationCount(t *testing.T, recipientID string) int {
	t.Helper()
	items, err := f.notifications.List(context.Background(), recipientID, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return len(items)
}

func ptr(value string) *string {
	return &value
}

func intPtr(value int) *int {
	return &value
}

func TestApproveJoinRequestAddsSenderOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner"})
	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "sender",
		RecipientID: "owner",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestJoin,
		Status:      "PENDING",
	})

	for i := 0; i < 2; i++ {
		result, err := f.svc.ApproveApartmentRequest(ctx, "req-1", "owner")
		if err != nil {
			t.Fatalf("approve %d: expected no error, got %v", i+1, err)
		}
		if result.Partial() {
			t.Fatalf("approve %d: unexpected side-effect errors %v", i+1, result.SideEffectErrors())
		}
	}

	apartment, err := f.repo.GetApartment(ctx, "apt-1")
	if err != nil {
		t.Fatalf("get apartment: %v", err)
	}
	if len(apartment.PartnerIDs) != 1 || apartment.PartnerIDs[0] != "sender" {
		t.Fatalf("expected sender added once, got %v", apartment.PartnerIDs)
	}
	req, err := f.repo.GetApartmentRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != string(requestsdomain.StatusApproved) {
		t.Fatalf("expected approved, got %s", req.Status)
	}
	if got := f.notificationCount(t, "sender"); got != 1 {
		t.Fatalf("expected one notification for sender, got %d", got)
	}

	ownerGroup, _, _ := f.groups.ActiveGroup(ctx, "owner")
	senderGroup, _, _ := f.groups.ActiveGroup(ctx, "sender")
	if ownerGroup == "" || ownerGroup != senderGroup {
		t.Fatalf("expected owner and sender linked, got %q and %q", ownerGroup, senderGroup)
	}
}

func TestApproveInviteRequestAddsRecipient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner"})
	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "owner",
		RecipientID: "guest",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestInvite,
		Status:      "WAITING",
	})

	result, err := f.svc.ApproveApartmentRequest(ctx, "req-1", "guest")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Kind != requestsdomain.KindApartmentInvite {
		t.Fatalf("expected APT_INVITE, got %s", result.Kind)
	}

	apartment, err := f.repo.GetApartment(ctx, "apt-1")
	if err != nil {
		t.Fatalf("get apartment: %v", err)
	}
	if !apartment.HasPartner("guest") || apartment.HasPartner("owner") {
		t.Fatalf("expected only guest as partner, got %v", apartment.PartnerIDs)
	}
	if got := f.notificationCount(t, "owner"); got != 1 {
		t.Fatalf("expected owner notified, got %d", got)
	}
}

func TestApproveApartmentRequestErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner"})
	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "sender",
		RecipientID: "owner",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestJoin,
		Status:      "נדחה",
	})

	if _, err := f.svc.ApproveApartmentRequest(ctx, "missing", "owner"); !errors.Is(err, requestsdomain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if _, err := f.svc.ApproveApartmentRequest(ctx, "req-1", "sender"); !errors.Is(err, requestsdomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.ApproveApartmentRequest(ctx, "req-1", "owner"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}
}

func TestApproveApartmentRequestFullApartmentIsPartial(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner", PartnerIDs: []string{"roommate"}, RoommateCapacity: intPtr(1)})
	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "sender",
		RecipientID: "owner",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestJoin,
		Status:      "PENDING",
	})

	result, err := f.svc.ApproveApartmentRequest(ctx, "req-1", "owner")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Partial() {
		t.Fatalf("expected partial approval")
	}
	if !errors.Is(result.SideEffectErr, requestsdomain.ErrApartmentFull) {
		t.Fatalf("expected ErrApartmentFull in side effects, got %v", result.SideEffectErr)
	}
	if len(result.SideEffectErrors()) != 1 {
		t.Fatalf("expected one side-effect error, got %v", result.SideEffectErrors())
	}

	req, err := f.repo.GetApartmentRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != string(requestsdomain.StatusApproved) {
		t.Fatalf("expected status to stay approved, got %s", req.Status)
	}
}

func TestRejectAndCancelApartmentRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, id := range []string{"req-1", "req-2"} {
		f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
			ID:          id,
			SenderID:    "sender",
			RecipientID: "owner",
			ApartmentID: "apt-1",
			Type:        requestsdomain.ApartmentRequestJoin,
			Status:      "PENDING",
		})
	}

	if err := f.svc.RejectApartmentRequest(ctx, "req-1", "sender"); !errors.Is(err, requestsdomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.RejectApartmentRequest(ctx, "req-1", "owner"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.svc.RejectApartmentRequest(ctx, "req-1", "owner"); err != nil {
		t.Fatalf("expected repeated reject to succeed, got %v", err)
	}

	if err := f.svc.CancelApartmentRequest(ctx, "req-2", "owner"); !errors.Is(err, requestsdomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.CancelApartmentRequest(ctx, "req-2", "sender"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.svc.CancelApartmentRequest(ctx, "req-1", "sender"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}

	req, err := f.repo.GetApartmentRequest(ctx, "req-2")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != string(requestsdomain.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", req.Status)
	}
}

func TestGroupTargetedMatchResolvesOtherMember(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedGroup(t, "group-1", "user-1", "user-2")
	f.repo.PutMatch(requestsdomain.Match{ID: "match-1", SenderID: "sender", ReceiverGroupID: ptr("group-1"), Status: "PENDING"})

	items, err := f.svc.ListRequests(ctx, "user-1", requestsdomain.Criteria{Tab: requestsdomain.TabIncoming, Kind: requestsdomain.KindMatch, Status: requestsdomain.StatusAll})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one match, got %+v", items)
	}
	if items[0].RecipientID != "user-2" {
		t.Fatalf("expected display recipient user-2, got %q", items[0].RecipientID)
	}
	if items[0].DisplayGroupID != "group-1" {
		t.Fatalf("expected display group group-1, got %q", items[0].DisplayGroupID)
	}

	stored, err := f.repo.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.ReceiverID != nil {
		t.Fatalf("expected receiver to stay unset, got %q", *stored.ReceiverID)
	}
}

func TestInboxMergesKindsAndDropsNotRelevant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID: "req-old", SenderID: "other", RecipientID: "me", ApartmentID: "apt-1",
		Type: requestsdomain.ApartmentRequestJoin, Status: "PENDING", CreatedAt: base,
	})
	f.repo.PutApartmentRequest(requestsdomain.ApartmentRequest{
		ID: "req-expired", SenderID: "other", RecipientID: "me", ApartmentID: "apt-1",
		Type: requestsdomain.ApartmentRequestJoin, Status: "EXPIRED", CreatedAt: base.Add(time.Minute),
	})
	f.repo.PutMatch(requestsdomain.Match{
		ID: "match-new", SenderID: "other", ReceiverID: ptr("me"), Status: "CONFIRMED", CreatedAt: base.Add(2 * time.Minute),
	})
	f.repo.PutMatch(requestsdomain.Match{
		ID: "match-sent", SenderID: "me", ReceiverID: ptr("other"), Status: "בוטל", CreatedAt: base,
	})
	invite, err := f.groups.SendInvite(ctx, "friend", "me")
	if err != nil {
		t.Fatalf("send invite: %v", err)
	}

	inbox, err := f.svc.Inbox(ctx, "me")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	wantIncoming := []string{invite.ID, "match-new", "req-old"}
	if len(inbox.Incoming) != len(wantIncoming) {
		t.Fatalf("expected %v, got %+v", wantIncoming, inbox.Incoming)
	}
	for i, id := range wantIncoming {
		if inbox.Incoming[i].ID != id {
			t.Fatalf("expected %s at %d, got %s", id, i, inbox.Incoming[i].ID)
		}
	}
	if inbox.Incoming[0].Kind != requestsdomain.KindGroup {
		t.Fatalf("expected group invite kind, got %s", inbox.Incoming[0].Kind)
	}
	if inbox.Incoming[1].Status != requestsdomain.StatusApproved {
		t.Fatalf("expected normalized approved, got %s", inbox.Incoming[1].Status)
	}
	if len(inbox.Sent) != 1 || inbox.Sent[0].Status != requestsdomain.StatusCancelled {
		t.Fatalf("expected one cancelled sent match, got %+v", inbox.Sent)
	}
}

func TestListRequestsEnrichesMergedProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedGroup(t, "group-1", "sender", "partner")
	if err := f.users.UpsertProfile(ctx, usersdomain.Identity{UserID: "sender", FullName: "Dana"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if err := f.users.UpsertProfile(ctx, usersdomain.Identity{UserID: "partner", FullName: "Noa", AvatarURL: "https://cdn.example/noa.png"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	f.repo.PutMatch(requestsdomain.Match{ID: "match-1", SenderID: "sender", ReceiverID: ptr("me"), Status: "PENDING"})

	items, err := f.svc.ListRequests(ctx, "me", requestsdomain.Criteria{Tab: requestsdomain.TabIncoming, Kind: requestsdomain.KindAll, Status: requestsdomain.StatusAll})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 1 || items[0].MergedProfile == nil {
		t.Fatalf("expected enriched item, got %+v", items)
	}
	profile := items[0].MergedProfile
	if profile.GroupID != "group-1" || len(profile.Members) != 2 {
		t.Fatalf("unexpected merged profile %+v", profile)
	}
	names := map[string]string{}
	for _, member := range profile.Members {
		names[member.UserID] = member.Name
	}
	if names["sender"] != "Dana" || names["partner"] != "Noa" {
		t.Fatalf("expected member names, got %v", names)
	}
}

type failingProfileGroups struct {
	requestsdomain.Groups
}

func (failingProfileGroups) SharedProfile(context.Context, string) (*groupsdomain.Snapshot, error) {
	return nil, errors.New("store unavailable")
}

func TestListRequestsEnrichmentFailureDegrades(t *testing.T) {
	f := newFixture(t, func(groups requestsdomain.Groups) requestsdomain.Groups {
		return failingProfileGroups{Groups: groups}
	})
	ctx := context.Background()
	f.seedGroup(t, "group-1", "sender", "partner")
	f.repo.PutMatch(requestsdomain.Match{ID: "match-1", SenderID: "sender", ReceiverID: ptr("me"), Status: "PENDING"})

	items, err := f.svc.ListRequests(ctx, "me", requestsdomain.Criteria{Tab: requestsdomain.TabIncoming, Kind: requestsdomain.KindAll, Status: requestsdomain.StatusAll})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item, got %+v", items)
	}
	if items[0].MergedProfile != nil {
		t.Fatalf("expected unenriched item, got %+v", items[0].MergedProfile)
	}
}

func TestApproveGroupTargetedMatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedGroup(t, "group-1", "user-1", "user-2")
	f.repo.PutMatch(requestsdomain.Match{ID: "match-1", SenderID: "sender", ReceiverGroupID: ptr("group-1"), Status: "PENDING"})

	if _, err := f.svc.ApproveMatch(ctx, "match-1", "stranger"); !errors.Is(err, requestsdomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	result, err := f.svc.ApproveMatch(ctx, "match-1", "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != requestsdomain.StatusApproved || result.Partial() {
		t.Fatalf("unexpected result %+v", result)
	}

	groupID, _, err := f.groups.ActiveGroup(ctx, "sender")
	if err != nil {
		t.Fatalf("active group: %v", err)
	}
	if groupID != "group-1" {
		t.Fatalf("expected sender linked into group-1, got %q", groupID)
	}
	if got := f.notificationCount(t, "sender"); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}

	if err := f.svc.RejectMatch(ctx, "match-1", "user-2"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}
}

func TestRejectMatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.PutMatch(requestsdomain.Match{ID: "match-1", SenderID: "sender", ReceiverID: ptr("me"), Status: "PENDING"})

	if err := f.svc.RejectMatch(ctx, "match-1", "sender"); !errors.Is(err, requestsdomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.RejectMatch(ctx, "match-1", "me"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := f.svc.ApproveMatch(ctx, "match-1", "me"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}
	if _, err := f.svc.ApproveMatch(ctx, "missing", "me"); !errors.Is(err, requestsdomain.ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}
