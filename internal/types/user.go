package types

import "time"

// Identity is what the auth layer knows about the caller.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	Name          string
}

// DisplayName falls back to the email local part when no name is set.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	for idx, r := range i.Email {
		if r == '@' {
			return i.Email[:idx]
		}
	}
	if i.Email != "" {
		return i.Email
	}
	return "Anonymous"
}

// User mirrors a Firebase principal in the local store.
type User struct {
	ID        string    `json:"id" example:"kZ3vQ9aT1bX"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrantAdminRequest is the body of POST /admin/admins.
type GrantAdminRequest struct {
	UserID string `json:"user_id" example:"kZ3vQ9aT1bX"`
}
