package auth

import (
	"strings"
	"time"
)

// User represents an account holder. A user owns zero or more agents and,
// through them, their conversations.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// SignupRequest is the request body for account creation
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Validate checks the signup request fields
func (r *SignupRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return ErrMissingFields
	}
	return nil
}

// LoginRequest is the request body for authentication
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login request fields
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return ErrMissingFields
	}
	return nil
}

// TokenResponse is returned on successful signup or login
type TokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
