package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/7930navid/posts-server/internal/models"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: "a@x.com", Username: "a", Password: string(hash)}

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(m *mockUserRepo)
		code     string
	}{
		{"missing email", "", "s3cret", nil, models.CodeValidation},
		{"missing password", "a@x.com", "", nil, models.CodeValidation},
		{"unknown user", "b@x.com", "s3cret", func(m *mockUserRepo) {
			m.On("GetByEmail", mock.Anything, "b@x.com").Return(nil, nil)
		}, models.CodeNotFound},
		{"wrong password", "a@x.com", "nope", func(m *mockUserRepo) {
			m.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil)
		}, models.CodeUnauthorized},
		{"store error", "a@x.com", "s3cret", func(m *mockUserRepo) {
			m.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("timeout"))
		}, models.CodeInternal},
		{"ok", "a@x.com", "s3cret", func(m *mockUserRepo) {
			m.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil)
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{}
			if tt.setup != nil {
				tt.setup(repo)
			}
			err := NewAuthService(repo).VerifyPassword(context.Background(), tt.email, tt.password)
			if tt.code == "" {
				assert.NoError(t, err)
			} else {
				assertCode(t, err, tt.code)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestVerifyPassword_DisabledUsersStore(t *testing.T) {
	err := NewAuthService(nil).VerifyPassword(context.Background(), "a@x.com", "pw")
	assertCode(t, err, models.CodeInternal)
	assert.ErrorIs(t, err, ErrUsersStoreDisabled)
}
