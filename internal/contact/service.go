package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// ErrMessageNotFound is returned when a message id does not exist.
var ErrMessageNotFound = fmt.Errorf("%w: contact message not found", httpx.ErrNotFound)

// Notifier tells the admin about a new message.
type Notifier interface {
	NotifyContact(ctx context.Context, messageID int64) error
}

// Service handles contact messages.
type Service struct {
	repo      Repository
	notifier  Notifier
	validator *shared.Validator
}

// NewService constructs the service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, validator: shared.NewValidator()}
}

// Create validates and stores a message, then asks for an admin notification.
// A failed notification does not fail the submission.
func (s *Service) Create(ctx context.Context, in MessageInput) (Message, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return Message{}, err
	}
	m, err := s.repo.Create(ctx, Message{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Message: in.Message,
	})
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyContact(ctx, m.ID)
	}
	return m, nil
}

// Get returns a single message.
func (s *Service) Get(ctx context.Context, id int64) (Message, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Message{}, translate("get message", err)
	}
	return m, nil
}

// List returns message summaries newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	messages, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Summary, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.summary())
	}
	return out, nil
}

// Delete removes a message.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate("delete message", err)
	}
	return nil
}

// MarkAsRead flags a message as read. Marking twice is harmless.
func (s *Service) MarkAsRead(ctx context.Context, id int64) (Message, error) {
	m, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return Message{}, translate("mark message read", err)
	}
	return m, nil
}

func translate(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrMessageNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
