package auth

import "errors"

var (
	// ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed login attempt
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when a user lookup misses
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingFields is returned when email or password are absent
	ErrMissingFields = errors.New("email and password are required")

	// ErrInvalidToken is returned when a JWT fails verification
	ErrInvalidToken = errors.New("invalid or expired token")
)
