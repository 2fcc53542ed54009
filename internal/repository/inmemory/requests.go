package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	requestsdomain "roommates-app-go/internal/domain/requests"
)

type RequestsRepository struct {
	mu                sync.RWMutex
	apartmentRequests map[string]requestsdomain.ApartmentRequest
	matches           map[string]requestsdomain.Match
	apartments        map[string]requestsdomain.Apartment
}

func NewRequestsRepository() *RequestsRepository {
	return &RequestsRepository{
		apartmentRequests: make(map[string]requestsdomain.ApartmentRequest),
		matches:           make(map[string]requestsdomain.Match),
		apartments:        make(map[string]requestsdomain.Apartment),
	}
}

// PutApartmentRequest stores req as is. Requests are created by the listing
// flow, which lives outside this service.
func (r *RequestsRepository) PutApartmentRequest(req requestsdomain.ApartmentRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	r.apartmentRequests[req.ID] = req
}

func (r *RequestsRepository) PutMatch(match requestsdomain.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	r.matches[match.ID] = match
}

func (r *RequestsRepository) PutApartment(apartment requestsdomain.Apartment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apartment.PartnerIDs = append(pq.StringArray{}, apartment.PartnerIDs...)
	r.apartments[apartment.ID] = apartment
}

func (r *RequestsRepository) GetApartmentRequest(_ context.Context, id string) (*requestsdomain.ApartmentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.apartmentRequests[id]
	if !ok {
		return nil, requestsdomain.ErrRequestNotFound
	}
	return &req, nil
}

func (r *RequestsRepository) ListApartmentRequestsByRecipient(_ context.Context, userID string) ([]requestsdomain.ApartmentRequest, error) {
	return r.listApartmentRequests(func(req requestsdomain.ApartmentRequest) bool {
		return req.RecipientID == userID
	}), nil
}

func (r *RequestsRepository) ListApartmentRequestsBySender(_ context.Context, userID string) ([]requestsdomain.ApartmentRequest, error) {
	return r.listApartmentRequests(func(req requestsdomain.ApartmentRequest) bool {
		return req.SenderID == userID
	}), nil
}

func (r *RequestsRepository) UpdateApartmentRequestStatus(_ context.Context, id, from string, status requestsdomain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.apartmentRequests[id]
	if !ok {
		return requestsdomain.ErrRequestNotFound
	}
	if req.Status != from {
		return requestsdomain.ErrRequestResolved
	}
	req.Status = string(status)
	req.UpdatedAt = time.Now().UTC()
	r.apartmentRequests[id] = req
	return nil
}

func (r *RequestsRepository) GetMatch(_ context.Context, id string) (*requestsdomain.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.matches[id]
	if !ok {
		return nil, requestsdomain.ErrMatchNotFound
	}
	return &match, nil
}

func (r *RequestsRepository) ListMatchesByReceiver(_ context.Context, userID, groupID string) ([]requestsdomain.Match, error) {
	return r.listMatches(func(match requestsdomain.Match) bool {
		if match.ReceiverID != nil && *match.ReceiverID == userID {
			return true
		}
		return groupID != "" && match.ReceiverGroupID != nil && *match.ReceiverGroupID == groupID
	}), nil
}

func (r *RequestsRepository) ListMatchesBySender(_ context.Context, userID string) ([]requestsdomain.Match, error) {
	return r.listMatches(func(match requestsdomain.Match) bool {
		return match.SenderID == userID
	}), nil
}

func (r *RequestsRepository) UpdateMatchStatus(_ context.Context, id, from string, status requestsdomain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.matches[id]
	if !ok {
		return requestsdomain.ErrMatchNotFound
	}
	if match.Status != from {
		return requestsdomain.ErrRequestResolved
	}
	match.Status = string(status)
	match.UpdatedAt = time.Now().UTC()
	r.matches[id] = match
	return nil
}

func (r *RequestsRepository) GetApartment(_ context.Context, id string) (*requestsdomain.Apartment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apartment, ok := r.apartments[id]
	if !ok {
		return nil, requestsdomain.ErrApartmentNotFound
	}
	apartment.PartnerIDs = append(pq.StringArray{}, apartment.PartnerIDs...)
	return &apartment, nil
}

func (r *RequestsRepository) AddApartmentPartner(_ context.Context, apartmentID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apartment, ok := r.apartments[apartmentID]
	if !ok {
		return false, requestsdomain.ErrApartmentNotFound
	}
	if apartment.HasPartner(userID) {
		return false, nil
	}
	if apartment.RoommateCapacity != nil && len(apartment.PartnerIDs) >= *apartment.RoommateCapacity {
		return false, requestsdomain.ErrApartmentFull
	}

	apartment.PartnerIDs = append(apartment.PartnerIDs, userID)
	apartment.UpdatedAt = time.Now().UTC()
	r.apartments[apartmentID] = apartment
	return true, nil
}

func (r *RequestsRepository) listApartmentRequests(match func(requestsdomain.ApartmentRequest) bool) []requestsdomain.ApartmentRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]requestsdomain.ApartmentRequest, 0)
	for _, req := range r.apartmentRequests {
		if match(req) {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (r *RequestsRepository) listMatches(match func(requestsdomain.Match) bool) []requestsdomain.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]requestsdomain.Match, 0)
	for _, item := range r.matches {
		if match(item) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
