package notifications

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidMessage       = errors.New("invalid notification message")
)
