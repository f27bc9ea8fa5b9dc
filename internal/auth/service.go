package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syntaxhq/syntax-chat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides session authentication for the chat server.
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

// Register creates a new user and returns the user plus a session token.
func (s *Service) Register(ctx context.Context, username, password string) (*store.User, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, "", ErrInvalidPassword
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return user, token, nil
}

// Login validates credentials and returns the user plus a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return user, token, nil
}

// SessionTTLSeconds returns the session lifetime for cookie max-age.
func (s *Service) SessionTTLSeconds() int {
	return int(s.jwtConfig.TTL.Seconds())
}

// ValidateToken validates a session token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
