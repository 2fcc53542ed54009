package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type Service struct {
	repo     Repository
	recorder Recorder
	policy   *bluemonday.Policy
}

func NewService(repo Repository, recorder Recorder) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		repo:     repo,
		recorder: recorder,
		policy:   bluemonday.StrictPolicy(),
	}
}

func (s *Service) Send(ctx context.Context, msg Message) error {
	notification, err := s.build(msg, "")
	if err != nil {
		return err
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	s.recorder.NotificationSent(false)
	return nil
}

// SendOnce is a no-op when a notification with eventKey was already stored.
func (s *Service) SendOnce(ctx context.Context, msg Message, eventKey string) error {
	eventKey = strings.TrimSpace(eventKey)
	if eventKey == "" {
		return fmt.Errorf("%w: event key is required", ErrInvalidMessage)
	}

	notification, err := s.build(msg, eventKey)
	if err != nil {
		return err
	}
	created, err := s.repo.CreateOnce(ctx, notification)
	if err != nil {
		return err
	}
	s.recorder.NotificationSent(!created)
	return nil
}

func (s *Service) List(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return s.repo.ListByRecipient(ctx, recipientID, limit)
}

func (s *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.repo.MarkRead(ctx, id, recipientID)
}

func (s *Service) build(msg Message, eventKey string) (*Notification, error) {
	if msg.SenderID == "" || msg.RecipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidMessage)
	}

	title := truncate(strings.TrimSpace(s.policy.Sanitize(msg.Title)), maxTitleLength)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidMessage)
	}

	notification := &Notification{
		ID:          uuid.NewString(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Title:       title,
		Description: truncate(strings.TrimSpace(s.policy.Sanitize(msg.Description)), maxDescriptionLength),
	}
	if eventKey != "" {
		notification.EventKey = &eventKey
	}
	return notification, nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
