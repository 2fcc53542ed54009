package notifications

import "context"

type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	// CreateOnce inserts the notification unless one with the same event key
	// exists. It reports whether a row was written.
	CreateOnce(ctx context.Context, notification *Notification) (bool, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

type Recorder interface {
	NotificationSent(deduplicated bool)
}

type noopRecorder struct{}

func (noopRecorder) NotificationSent(bool) {}
