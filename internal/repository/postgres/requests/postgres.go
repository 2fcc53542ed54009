package requests

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	requestsdomain "roommates-app-go/internal/domain/requests"
	"roommates-app-go/internal/storeerr"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetApartmentRequest(ctx context.Context, id string) (*requestsdomain.ApartmentRequest, error) {
	var req requestsdomain.ApartmentRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, requestsdomain.ErrRequestNotFound
		}
		return nil, storeerr.Wrap("requests.get_apartment_request", err)
	}
	return &req, nil
}

func (r *PostgresRepository) ListApartmentRequestsByRecipient(ctx context.Context, userID string) ([]requestsdomain.ApartmentRequest, error) {
	return r.listApartmentRequests(ctx, "recipient_id = ?", userID)
}

func (r *PostgresRepository) ListApartmentRequestsBySender(ctx context.Context, userID string) ([]requestsdomain.ApartmentRequest, error) {
	return r.listApartmentRequests(ctx, "sender_id = ?", userID)
}

// UpdateApartmentRequestStatus is a compare-and-swap on the raw status, so a
// concurrent approve and reject cannot both land.
func (r *PostgresRepository) UpdateApartmentRequestStatus(ctx context.Context, id, from string, status requestsdomain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&requestsdomain.ApartmentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return storeerr.Wrap("requests.update_apartment_request_status", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.lostUpdate(ctx, &requestsdomain.ApartmentRequest{}, id, requestsdomain.ErrRequestNotFound)
	}
	return nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, id string) (*requestsdomain.Match, error) {
	var match requestsdomain.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, requestsdomain.ErrMatchNotFound
		}
		return nil, storeerr.Wrap("requests.get_match", err)
	}
	return &match, nil
}

func (r *PostgresRepository) ListMatchesByReceiver(ctx context.Context, userID, groupID string) ([]requestsdomain.Match, error) {
	query := r.db.WithContext(ctx).Where("receiver_id = ?", userID)
	if groupID != "" {
		query = query.Or("receiver_group_id = ?", groupID)
	}

	var matches []requestsdomain.Match
	if err := query.Order("created_at desc, id asc").Find(&matches).Error; err != nil {
		return nil, storeerr.Wrap("requests.list_matches_by_receiver", err)
	}
	return matches, nil
}

func (r *PostgresRepository) ListMatchesBySender(ctx context.Context, userID string) ([]requestsdomain.Match, error) {
	var matches []requestsdomain.Match
	if err := r.db.WithContext(ctx).
		Where("sender_id = ?", userID).
		Order("created_at desc, id asc").
		Find(&matches).Error; err != nil {
		return nil, storeerr.Wrap("requests.list_matches_by_sender", err)
	}
	return matches, nil
}

func (r *PostgresRepository) UpdateMatchStatus(ctx context.Context, id, from string, status requestsdomain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&requestsdomain.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return storeerr.Wrap("requests.update_match_status", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.lostUpdate(ctx, &requestsdomain.Match{}, id, requestsdomain.ErrMatchNotFound)
	}
	return nil
}

// lostUpdate tells a missing row from one whose status changed under us.
func (r *PostgresRepository) lostUpdate(ctx context.Context, model interface{}, id string, notFound error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return storeerr.Wrap("requests.lost_update", err)
	}
	if count == 0 {
		return notFound
	}
	return requestsdomain.ErrRequestResolved
}

func (r *PostgresRepository) GetApartment(ctx context.Context, id string) (*requestsdomain.Apartment, error) {
	var apartment requestsdomain.Apartment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&apartment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, requestsdomain.ErrApartmentNotFound
		}
		return nil, storeerr.Wrap("requests.get_apartment", err)
	}
	return &apartment, nil
}

// AddApartmentPartner appends in a single guarded UPDATE so retries and
// concurrent approvals cannot add the same user twice or overfill the
// apartment.
func (r *PostgresRepository) AddApartmentPartner(ctx context.Context, apartmentID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE apartments
		SET partner_ids = array_append(partner_ids, ?::text), updated_at = NOW()
		WHERE id = ?
		  AND NOT (?::text = ANY(partner_ids))
		  AND (roommate_capacity IS NULL OR cardinality(partner_ids) < roommate_capacity)`,
		userID, apartmentID, userID,
	)
	if result.Error != nil {
		return false, storeerr.Wrap("requests.add_apartment_partner", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	apartment, err := r.GetApartment(ctx, apartmentID)
	if err != nil {
		return false, err
	}
	if apartment.HasPartner(userID) {
		return false, nil
	}
	return false, requestsdomain.ErrApartmentFull
}

func (r *PostgresRepository) listApartmentRequests(ctx context.Context, where, userID string) ([]requestsdomain.ApartmentRequest, error) {
	var requests []requestsdomain.ApartmentRequest
	if err := r.db.WithContext(ctx).
		Where(where, userID).
		Order("created_at desc, id asc").
		Find(&requests).Error; err != nil {
		return nil, storeerr.Wrap("requests.list_apartment_requests", err)
	}
	return requests, nil
}
