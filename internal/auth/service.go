package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketline/chat-server/internal/store"
)

var (
	// ErrUnauthenticated is returned when a credential does not resolve to a user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidName is returned when the display name doesn't meet constraints.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity is a validated user identity as established by a credential.
type Identity struct {
	UserID int64
	Name   string
}

// Service provides authentication operations. The conversation core never
// validates a credential itself; it consumes identities produced here.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(name) < 2 || len(name) > 64 {
		return "", ErrInvalidName
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, name, email, hashedPassword)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Name)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Authenticate resolves a bearer token to a validated identity.
// Fails with ErrUnauthenticated for any invalid or expired credential.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	// The token may outlive the user row; re-check existence.
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	return &Identity{UserID: user.ID, Name: user.Name}, nil
}
