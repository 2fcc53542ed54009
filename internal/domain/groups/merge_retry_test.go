package groups_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	groupsdomain "roommates-app-go/internal/domain/groups"
	"roommates-app-go/internal/repository/inmemory"
	"roommates-app-go/pkg/logger"
)

var errStoreDown = errors.New("store unavailable")

// faultyGroupsRepository fails the nth call to one write method and passes
// everything else through to the in-memory store.
type faultyGroupsRepository struct {
	*inmemory.GroupsRepository

	mu     sync.Mutex
	op     string
	failAt int
	calls  map[string]int
	fired  bool
}

func newFaultyGroupsRepository() *faultyGroupsRepository {
	return &faultyGroupsRepository{
		GroupsRepository: inmemory.NewGroupsRepository(),
		calls:            make(map[string]int),
	}
}

func (r *faultyGroupsRepository) failOn(op string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.op = op
	r.failAt = n
	r.calls = make(map[string]int)
	r.fired = false
}

func (r *faultyGroupsRepository) didFire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired
}

func (r *faultyGroupsRepository) hit(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	if op == r.op && r.calls[op] == r.failAt {
		r.fired = true
		return errStoreDown
	}
	return nil
}

func (r *faultyGroupsRepository) CreateGroup(ctx context.Context, group *groupsdomain.Group) error {
	if err := r.hit("CreateGroup"); err != nil {
		return err
	}
	return r.GroupsRepository.CreateGroup(ctx, group)
}

func (r *faultyGroupsRepository) UpdateGroupStatus(ctx context.Context, groupID string, status groupsdomain.GroupStatus) error {
	if err := r.hit("UpdateGroupStatus"); err != nil {
		return err
	}
	return r.GroupsRepository.UpdateGroupStatus(ctx, groupID, status)
}

func (r *faultyGroupsRepository) InsertMembership(ctx context.Context, member *groupsdomain.Member) error {
	if err := r.hit("InsertMembership"); err != nil {
		return err
	}
	return r.GroupsRepository.InsertMembership(ctx, member)
}

func (r *faultyGroupsRepository) SetMembershipStatus(ctx context.Context, groupID, userID string, status groupsdomain.MemberStatus) error {
	if err := r.hit("SetMembershipStatus"); err != nil {
		return err
	}
	return r.GroupsRepository.SetMembershipStatus(ctx, groupID, userID, status)
}

func (r *faultyGroupsRepository) ResolveInvite(ctx context.Context, inviteID string, status groupsdomain.InviteStatus, respondedAt time.Time) (bool, error) {
	if err := r.hit("ResolveInvite"); err != nil {
		return false, err
	}
	return r.GroupsRepository.ResolveInvite(ctx, inviteID, status, respondedAt)
}

var acceptWrites = []string{"CreateGroup", "InsertMembership", "SetMembershipStatus", "UpdateGroupStatus", "ResolveInvite"}

type acceptFixture struct {
	svc      *groupsdomain.Service
	repo     *faultyGroupsRepository
	notifier *recordingNotifier
	inviteID string
}

// forEachAcceptFault fails every write the accept performs, one at a time,
// and hands each half-done fixture to check. A fixture whose fault never
// fired ends the loop for that write.
func forEachAcceptFault(t *testing.T, setup func(t *testing.T, repo *faultyGroupsRepository, svc *groupsdomain.Service) string, check func(t *testing.T, f acceptFixture)) {
	t.Helper()
	for _, op := range acceptWrites {
		for n := 1; ; n++ {
			if n > 20 {
				t.Fatalf("%s: fault never stopped firing", op)
			}

			repo := newFaultyGroupsRepository()
			notifier := &recordingNotifier{}
			svc := groupsdomain.NewService(repo, notifier, logger.NewNop(), groupsdomain.WithLocker(inmemory.NewLocker()))
			inviteID := setup(t, repo, svc)

			repo.failOn(op, n)
			_, err := svc.AcceptInvite(context.Background(), inviteID, "user-y")
			if !repo.didFire() {
				if err != nil {
					t.Fatalf("%s: expected no error without a fault, got %v", op, err)
				}
				break
			}
			if !errors.Is(err, errStoreDown) {
				t.Fatalf("%s #%d: expected injected failure, got %v", op, n, err)
			}
			if status := inviteStatus(t, repo.GroupsRepository, inviteID); status != groupsdomain.InviteStatusPending {
				t.Fatalf("%s #%d: expected invite pending after a failed accept, got %s", op, n, status)
			}

			t.Run(op, func(t *testing.T) {
				check(t, acceptFixture{svc: svc, repo: repo, notifier: notifier, inviteID: inviteID})
			})
		}
	}
}

func TestAcceptInviteRetryConvergesForNewGroup(t *testing.T) {
	setup := func(t *testing.T, _ *faultyGroupsRepository, svc *groupsdomain.Service) string {
		invite, err := svc.SendInvite(context.Background(), "user-x", "user-y")
		if err != nil {
			t.Fatalf("send invite: %v", err)
		}
		return invite.ID
	}

	forEachAcceptFault(t, setup, func(t *testing.T, f acceptFixture) {
		ctx := context.Background()
		result, err := f.svc.AcceptInvite(ctx, f.inviteID, "user-y")
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if result.Scenario != groupsdomain.ScenarioCreated {
			t.Fatalf("expected scenario created, got %s", result.Scenario)
		}

		repo := f.repo.GroupsRepository
		if got := activeMembers(t, repo, result.GroupID); len(got) != 2 {
			t.Fatalf("expected 2 active members, got %v", got)
		}
		for _, userID := range []string{"user-x", "user-y"} {
			if got := activeGroup(t, repo, userID); got != result.GroupID {
				t.Fatalf("expected %s in %s, got %q", userID, result.GroupID, got)
			}
		}
		if status := inviteStatus(t, repo, f.inviteID); status != groupsdomain.InviteStatusAccepted {
			t.Fatalf("expected invite accepted, got %s", status)
		}
		if f.notifier.count("group-invite-accepted:") != 1 {
			t.Fatalf("expected one accepted notification, got %v", f.notifier.keys)
		}

		again, err := f.svc.AcceptInvite(ctx, f.inviteID, "user-y")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if again.Scenario != groupsdomain.ScenarioAlreadyAccepted || again.GroupID != result.GroupID {
			t.Fatalf("expected already accepted in %s, got %s in %s", result.GroupID, again.Scenario, again.GroupID)
		}
	})
}

func TestAcceptInviteRetryConvergesForMergedGroups(t *testing.T) {
	setup := func(t *testing.T, repo *faultyGroupsRepository, svc *groupsdomain.Service) string {
		seedGroup(t, repo.GroupsRepository, "g1", "user-x", "user-a")
		seedGroup(t, repo.GroupsRepository, "g2", "user-y", "user-b")
		invite, err := svc.SendInvite(context.Background(), "user-x", "user-y")
		if err != nil {
			t.Fatalf("send invite: %v", err)
		}
		return invite.ID
	}

	forEachAcceptFault(t, setup, func(t *testing.T, f acceptFixture) {
		ctx := context.Background()
		result, err := f.svc.AcceptInvite(ctx, f.inviteID, "user-y")
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if result.Scenario != groupsdomain.ScenarioMergedGroups {
			t.Fatalf("expected merged groups, got %s", result.Scenario)
		}

		repo := f.repo.GroupsRepository
		if got := activeMembers(t, repo, result.GroupID); len(got) != 4 {
			t.Fatalf("expected 4 active members, got %v", got)
		}
		for _, userID := range []string{"user-x", "user-a", "user-y", "user-b"} {
			if got := activeGroup(t, repo, userID); got != result.GroupID {
				t.Fatalf("expected %s in %s, got %q", userID, result.GroupID, got)
			}
			if got := countActiveRows(t, repo, userID, "g1", "g2", result.GroupID); got != 1 {
				t.Fatalf("expected one active row for %s, got %d", userID, got)
			}
		}
		if status := inviteStatus(t, repo, f.inviteID); status != groupsdomain.InviteStatusAccepted {
			t.Fatalf("expected invite accepted, got %s", status)
		}

		again, err := f.svc.AcceptInvite(ctx, f.inviteID, "user-y")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if again.Scenario != groupsdomain.ScenarioAlreadyAccepted || again.GroupID != result.GroupID {
			t.Fatalf("expected already accepted in %s, got %s in %s", result.GroupID, again.Scenario, again.GroupID)
		}
	})
}

func TestAcceptInviteRetryConvergesWhenJoiningGroup(t *testing.T) {
	setup := func(t *testing.T, repo *faultyGroupsRepository, svc *groupsdomain.Service) string {
		seedGroup(t, repo.GroupsRepository, "g1", "user-x", "user-a")
		invite, err := svc.SendInvite(context.Background(), "user-x", "user-y")
		if err != nil {
			t.Fatalf("send invite: %v", err)
		}
		return invite.ID
	}

	forEachAcceptFault(t, setup, func(t *testing.T, f acceptFixture) {
		result, err := f.svc.AcceptInvite(context.Background(), f.inviteID, "user-y")
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if result.GroupID != "g1" {
			t.Fatalf("expected g1, got %s", result.GroupID)
		}

		repo := f.repo.GroupsRepository
		if got := activeMembers(t, repo, "g1"); len(got) != 3 {
			t.Fatalf("expected 3 active members, got %v", got)
		}
		if status := inviteStatus(t, repo, f.inviteID); status != groupsdomain.InviteStatusAccepted {
			t.Fatalf("expected invite accepted, got %s", status)
		}
	})
}

func TestDeclineRefusedAfterHalfFinishedMerge(t *testing.T) {
	repo := newFaultyGroupsRepository()
	svc := groupsdomain.NewService(repo, &recordingNotifier{}, logger.NewNop(), groupsdomain.WithLocker(inmemory.NewLocker()))
	ctx := context.Background()
	seedGroup(t, repo.GroupsRepository, "g1", "user-x", "user-a")
	seedGroup(t, repo.GroupsRepository, "g2", "user-y", "user-b")

	invite, err := svc.SendInvite(ctx, "user-x", "user-y")
	if err != nil {
		t.Fatalf("send invite: %v", err)
	}

	repo.failOn("SetMembershipStatus", 2)
	if _, err := svc.AcceptInvite(ctx, invite.ID, "user-y"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	if err := svc.DeclineInvite(ctx, invite.ID, "user-y"); !errors.Is(err, groupsdomain.ErrInviteResolved) {
		t.Fatalf("expected ErrInviteResolved, got %v", err)
	}
	if status := inviteStatus(t, repo.GroupsRepository, invite.ID); status != groupsdomain.InviteStatusPending {
		t.Fatalf("expected invite pending, got %s", status)
	}

	result, err := svc.AcceptInvite(ctx, invite.ID, "user-y")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := activeMembers(t, repo.GroupsRepository, result.GroupID); len(got) != 4 {
		t.Fatalf("expected 4 active members, got %v", got)
	}
}
