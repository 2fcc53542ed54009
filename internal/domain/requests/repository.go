package requests

import (
	"context"

	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	usersdomain "roommates-app-go/internal/domain/users"
)

type Repository interface {
	GetApartmentRequest(ctx context.Context, id string) (*ApartmentRequest, error)
	ListApartmentRequestsByRecipient(ctx context.Context, userID string) ([]ApartmentRequest, error)
	ListApartmentRequestsBySender(ctx context.Context, userID string) ([]ApartmentRequest, error)
	// UpdateApartmentRequestStatus writes status only while the row still
	// holds the raw status from. A row that moved on yields ErrRequestResolved.
	UpdateApartmentRequestStatus(ctx context.Context, id, from string, status Status) error

	GetMatch(ctx context.Context, id string) (*Match, error)
	// ListMatchesByReceiver returns matches addressed to userID or, when
	// groupID is set, to that group.
	ListMatchesByReceiver(ctx context.Context, userID, groupID string) ([]Match, error)
	ListMatchesBySender(ctx context.Context, userID string) ([]Match, error)
	// UpdateMatchStatus follows the same rule as UpdateApartmentRequestStatus.
	UpdateMatchStatus(ctx context.Context, id, from string, status Status) error

	GetApartment(ctx context.Context, id string) (*Apartment, error)
	// AddApartmentPartner adds userID to the partner set unless it is already
	// there and reports whether the set changed. A full apartment yields
	// ErrApartmentFull.
	AddApartmentPartner(ctx context.Context, apartmentID, userID string) (bool, error)
}

// Groups is the slice of the shared-profile service the inbox and the
// approval pipeline need.
type Groups interface {
	ActiveGroup(ctx context.Context, userID string) (string, bool, error)
	ActiveMembers(ctx context.Context, groupID string) ([]string, error)
	Members(ctx context.Context, groupID string) ([]groupsdomain.Member, error)
	SharedProfile(ctx context.Context, userID string) (*groupsdomain.Snapshot, error)
	ListInvites(ctx context.Context, userID string) (*groupsdomain.InviteLists, error)
	LinkUsers(ctx context.Context, in groupsdomain.LinkInput) (*groupsdomain.LinkResult, error)
}

type Profiles interface {
	Profiles(ctx context.Context, ids []string) (map[string]usersdomain.Profile, error)
}

type Notifier interface {
	SendOnce(ctx context.Context, msg notificationsdomain.Message, eventKey string) error
}

type Recorder interface {
	RequestResolved(kind Kind, status Status, partial bool)
	SideEffectFailed(step string)
}

type noopProfiles struct{}

func (noopProfiles) Profiles(context.Context, []string) (map[string]usersdomain.Profile, error) {
	return map[string]usersdomain.Profile{}, nil
}

type noopNotifier struct{}

func (noopNotifier) SendOnce(context.Context, notificationsdomain.Message, string) error {
	return nil
}

type noopRecorder struct{}

func (noopRecorder) RequestResolved(Kind, Status, bool) {}

func (noopRecorder) SideEffectFailed(string) {}
