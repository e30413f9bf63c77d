package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/repository"
)

// ErrUsersStoreDisabled is wrapped into the internal error returned when no
// users store is configured.
var ErrUsersStoreDisabled = errors.New("users store not configured")

// AuthService checks credentials against the external users store.
// It never issues tokens or sessions.
type AuthService struct {
	users repository.UserRepository
}

// NewAuthService returns an AuthService. users may be nil, in which case every
// verification fails as an internal error.
func NewAuthService(users repository.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// VerifyPassword compares password with the bcrypt hash stored for email.
func (s *AuthService) VerifyPassword(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.NewValidationError("Missing data")
	}
	if s.users == nil {
		return models.NewInternalError("Server error", ErrUsersStoreDisabled)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return models.NewInternalError("Server error", err)
	}
	if user == nil {
		return models.NewNotFoundError("User not found")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.NewUnauthorizedError("Wrong password")
	}
	if err != nil {
		return models.NewInternalError("Server error", err)
	}
	return nil
}
