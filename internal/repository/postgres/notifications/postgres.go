package notifications

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	notificationsdomain "roommates-app-go/internal/domain/notifications"
	"roommates-app-go/internal/storeerr"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, notification *notificationsdomain.Notification) error {
	return storeerr.Wrap("notifications.create", r.db.WithContext(ctx).Create(notification).Error)
}

// CreateOnce leans on the unique event_key index.
func (r *PostgresRepository) CreateOnce(ctx context.Context, notification *notificationsdomain.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_key"}},
			DoNothing: true,
		}).
		Create(notification)
	if result.Error != nil {
		return false, storeerr.Wrap("notifications.create_once", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]notificationsdomain.Notification, error) {
	var items []notificationsdomain.Notification
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at desc, id asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, storeerr.Wrap("notifications.list", err)
	}
	return items, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	result := r.db.WithContext(ctx).
		Model(&notificationsdomain.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return storeerr.Wrap("notifications.mark_read", result.Error)
	}
	if result.RowsAffected == 0 {
		return notificationsdomain.ErrNotificationNotFound
	}
	return nil
}
