package auth

import "time"

// User represents an admin panel account.
type User struct {
	ID           int64
	Username     string
	Email        *string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the public projection of a user returned at login.
type UserView struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

func (u User) view() UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// TokenPair holds a signed access and refresh token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	TokenPair
	User UserView `json:"user"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// NewAdmin carries the fields needed to create an admin account.
type NewAdmin struct {
	Username string  `validate:"required,max=150"`
	Email    *string `validate:"omitempty,email"`
	Password string  `validate:"required,min=8"`
}
