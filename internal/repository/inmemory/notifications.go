package inmemory

import (
	"context"
	"sync"
	"time"

	notificationsdomain "roommates-app-go/internal/domain/notifications"
)

type NotificationsRepository struct {
	mu    sync.RWMutex
	items []notificationsdomain.Notification
	keys  map[string]struct{}
}

func NewNotificationsRepository() *NotificationsRepository {
	return &NotificationsRepository{keys: make(map[string]struct{})}
}

func (r *NotificationsRepository) Create(_ context.Context, notification *notificationsdomain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.insertLocked(notification)
	return nil
}

func (r *NotificationsRepository) CreateOnce(_ context.Context, notification *notificationsdomain.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if notification.EventKey != nil {
		if _, ok := r.keys[*notification.EventKey]; ok {
			return false, nil
		}
	}
	r.insertLocked(notification)
	return true, nil
}

func (r *NotificationsRepository) ListByRecipient(_ context.Context, recipientID string, limit int) ([]notificationsdomain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]notificationsdomain.Notification, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].RecipientID != recipientID {
			continue
		}
		result = append(result, r.items[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *NotificationsRepository) MarkRead(_ context.Context, id, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		if r.items[i].ID == id && r.items[i].RecipientID == recipientID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return notificationsdomain.ErrNotificationNotFound
}

func (r *NotificationsRepository) insertLocked(notification *notificationsdomain.Notification) {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if notification.EventKey != nil {
		r.keys[*notification.EventKey] = struct{}{}
	}
	r.items = append(r.items, *notification)
}
