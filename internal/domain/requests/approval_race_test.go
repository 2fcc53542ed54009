package requests_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	requestsdomain "roommates-app-go/internal/domain/requests"
	"roommates-app-go/internal/repository/inmemory"
	"roommates-app-go/pkg/logger"
)

// interleavingRepository runs interleave once, right after the first read of
// a request or match, standing in for a concurrent call that lands between
// the read and the status write.
type interleavingRepository struct {
	*inmemory.RequestsRepository

	once       sync.Once
	interleave func()
}

func (r *interleavingRepository) GetApartmentRequest(ctx context.Context, id string) (*requestsdomain.ApartmentRequest, error) {
	req, err := r.RequestsRepository.GetApartmentRequest(ctx, id)
	r.once.Do(r.interleave)
	return req, err
}

func (r *interleavingRepository) GetMatch(ctx context.Context, id string) (*requestsdomain.Match, error) {
	match, err := r.RequestsRepository.GetMatch(ctx, id)
	r.once.Do(r.interleave)
	return match, err
}

func newInterleavedService(repo *inmemory.RequestsRepository, interleave func()) *requestsdomain.Service {
	log := logger.NewNop()
	notifications := notificationsdomain.NewService(inmemory.NewNotificationsRepository(), nil)
	groups := groupsdomain.NewService(inmemory.NewGroupsRepository(), notifications, log)
	wrapped := &interleavingRepository{RequestsRepository: repo, interleave: interleave}
	return requestsdomain.NewService(wrapped, groups, notifications, log)
}

func TestApproveLosesToConcurrentReject(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRequestsRepository()
	repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner"})
	pending := requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "sender",
		RecipientID: "owner",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestJoin,
		Status:      "PENDING",
	}
	repo.PutApartmentRequest(pending)

	svc := newInterleavedService(repo, func() {
		rejected := pending
		rejected.Status = string(requestsdomain.StatusRejected)
		repo.PutApartmentRequest(rejected)
	})

	if _, err := svc.ApproveApartmentRequest(ctx, "req-1", "owner"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}

	req, err := repo.GetApartmentRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != string(requestsdomain.StatusRejected) {
		t.Fatalf("expected rejection to stand, got %s", req.Status)
	}
	apartment, err := repo.GetApartment(ctx, "apt-1")
	if err != nil {
		t.Fatalf("get apartment: %v", err)
	}
	if len(apartment.PartnerIDs) != 0 {
		t.Fatalf("expected no partner added, got %v", apartment.PartnerIDs)
	}
}

func TestRejectAfterConcurrentRejectSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRequestsRepository()
	repo.PutApartment(requestsdomain.Apartment{ID: "apt-1", OwnerID: "owner"})
	pending := requestsdomain.ApartmentRequest{
		ID:          "req-1",
		SenderID:    "sender",
		RecipientID: "owner",
		ApartmentID: "apt-1",
		Type:        requestsdomain.ApartmentRequestJoin,
		Status:      "ממתין",
	}
	repo.PutApartmentRequest(pending)

	svc := newInterleavedService(repo, func() {
		rejected := pending
		rejected.Status = "נדחה"
		repo.PutApartmentRequest(rejected)
	})

	if err := svc.RejectApartmentRequest(ctx, "req-1", "owner"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRejectMatchLosesToConcurrentApprove(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRequestsRepository()
	pending := requestsdomain.Match{ID: "match-1", SenderID: "user-1", ReceiverID: ptr("user-2"), Status: "WAITING"}
	repo.PutMatch(pending)

	svc := newInterleavedService(repo, func() {
		approved := pending
		approved.Status = string(requestsdomain.StatusApproved)
		repo.PutMatch(approved)
	})

	if err := svc.RejectMatch(ctx, "match-1", "user-2"); !errors.Is(err, requestsdomain.ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}
	match, err := repo.GetMatch(ctx, "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if match.Status != string(requestsdomain.StatusApproved) {
		t.Fatalf("expected approval to stand, got %s", match.Status)
	}
}
