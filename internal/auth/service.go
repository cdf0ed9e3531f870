package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/digitallabhq/voiceagent-platform/internal/tenancy"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

const bcryptCost = 12

// Claims carries the authenticated user identity inside a JWT.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service handles signup, login, and token verification.
type Service struct {
	repo        Repository
	secret      []byte
	tokenExpiry time.Duration
	logger      *logging.Logger
}

// NewService creates the auth service. The JWT secret is required.
func NewService(repo Repository, secret string, tokenExpiry time.Duration, logger *logging.Logger) *Service {
	if repo == nil {
		panic("auth: repository required")
	}
	if secret == "" {
		panic("auth: jwt secret required")
	}
	if tokenExpiry <= 0 {
		tokenExpiry = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:        repo,
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// Signup registers a new account and returns a token for immediate login.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, email, string(hash), strings.TrimSpace(req.FullName))
	if err != nil {
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return &TokenResponse{Token: token, User: user}, nil
}

// Login authenticates a user and returns a fresh token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same response for unknown email and bad password.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to stamp last login", "user_id", user.ID, "error", err)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, User: user}, nil
}

// GetUser loads a user profile by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// IssueToken signs an HS256 JWT for the user.
func (s *Service) IssueToken(user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT and returns the caller identity.
func (s *Service) VerifyToken(tokenString string) (tenancy.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return tenancy.Identity{}, ErrInvalidToken
	}
	return tenancy.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
