package notifications

import "time"

const (
	maxTitleLength       = 120
	maxDescriptionLength = 1000
	defaultListLimit     = 50
	maxListLimit         = 200
)

type Notification struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	SenderID    string    `gorm:"type:uuid;not null"`
	RecipientID string    `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	EventKey    *string   `gorm:"column:event_key;uniqueIndex"`
	IsRead      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Message is what callers hand to the dispatcher.
type Message struct {
	SenderID    string
	RecipientID string
	Title       string
	Description string
}
