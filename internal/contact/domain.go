// Package contact stores messages sent through the public contact form.
package contact

import (
	"strings"
	"time"

	"github.com/veresiye/defter/internal/shared"
)

// Message is a contact form submission.
type Message struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the list projection of a message.
type Summary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) summary() Summary {
	return Summary{ID: m.ID, Name: m.Name, Email: m.Email, IsRead: m.IsRead, CreatedAt: m.CreatedAt}
}

// MessageInput is the public payload of the contact form.
type MessageInput struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"required,email,max=254"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Message string  `json:"message" validate:"required"`
}

func (in *MessageInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	in.Phone = shared.TrimPtr(in.Phone)
}

// ListFilter narrows message listings.
type ListFilter struct {
	IsRead *bool
}
