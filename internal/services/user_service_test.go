package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

type mockUserRepo struct {
	created      *models.User
	updateFields map[string]interface{}
	resetEmail   string
	avatarURL    string
	authErr      error
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.created = user
	out := *user
	out.ID = uuid.New()
	out.Password = ""
	return &out, nil
}

func (m *mockUserRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return &types.TokenResponse{Session: types.Session{AccessToken: "access", RefreshToken: "refresh"}}, nil
}

func (m *mockUserRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	return &types.TokenResponse{Session: types.Session{AccessToken: "fresh"}}, nil
}

func (m *mockUserRepo) SendPasswordReset(ctx context.Context, email string) error {
	m.resetEmail = email
	return nil
}

func (m *mockUserRepo) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (m *mockUserRepo) UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*models.User, error) {
	m.updateFields = fields
	return &models.User{ID: userid}, nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, userId uuid.UUID, avatarURL string, accessToken string) (string, error) {
	m.avatarURL = avatarURL
	return avatarURL, nil
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name        string
		user        models.User
		expectedErr error
	}{
		{
			name: "valid sign up",
			user: models.User{FullName: "Ama Mensah", Email: "ama@example.com", Password: "Str0ng#Pass", Gender: models.GenderFemale},
		},
		{
			name:        "weak password",
			user:        models.User{FullName: "Ama Mensah", Email: "ama@example.com", Password: "password1"},
			expectedErr: models.ErrValidation,
		},
		{
			name:        "bad email",
			user:        models.User{FullName: "Ama Mensah", Email: "not-an-email", Password: "Str0ng#Pass"},
			expectedErr: models.ErrValidation,
		},
		{
			name:        "bad phone",
			user:        models.User{FullName: "Ama Mensah", Email: "ama@example.com", Password: "Str0ng#Pass", PhoneNumber: "call me"},
			expectedErr: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{}
			us := NewUserService(repo, nil)
			user := tt.user
			created, err := us.CreateUser(context.Background(), &user)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, repo.created)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Empty(t, created.Password)
		})
	}
}

func TestCreateUserCannotChooseRole(t *testing.T) {
	repo := &mockUserRepo{}
	us := NewUserService(repo, nil)
	_, err := us.CreateUser(context.Background(), &models.User{
		FullName: "Kofi", Email: "kofi@example.com", Password: "Str0ng#Pass", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, repo.created.Role)
}

func TestAuthenticateUser(t *testing.T) {
	us := NewUserService(&mockUserRepo{}, nil)
	res, err := us.AuthenticateUser(context.Background(), " Ama@Example.com ", "Str0ng#Pass")
	require.NoError(t, err)
	assert.Equal(t, "access", res.AccessToken)

	_, err = us.AuthenticateUser(context.Background(), "nope", "Str0ng#Pass")
	assert.ErrorIs(t, err, models.ErrValidation)

	failing := NewUserService(&mockUserRepo{authErr: errors.New("invalid login credentials")}, nil)
	_, err = failing.AuthenticateUser(context.Background(), "ama@example.com", "Str0ng#Pass")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrValidation)
}

func TestRequestPasswordReset(t *testing.T) {
	repo := &mockUserRepo{}
	us := NewUserService(repo, nil)
	require.NoError(t, us.RequestPasswordReset(context.Background(), " AMA@example.com"))
	assert.Equal(t, "ama@example.com", repo.resetEmail)

	assert.ErrorIs(t, us.RequestPasswordReset(context.Background(), "ama"), models.ErrValidation)
}

func TestUpdateUser(t *testing.T) {
	id := uuid.New()

	t.Run("drops protected keys and trims", func(t *testing.T) {
		repo := &mockUserRepo{}
		us := NewUserService(repo, nil)
		_, err := us.UpdateUser(context.Background(), map[string]interface{}{
			"bio":  "  I like racket sports  ",
			"role": "admin",
		}, id, "token")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"bio": "I like racket sports"}, repo.updateFields)
	})

	t.Run("only protected keys", func(t *testing.T) {
		us := NewUserService(&mockUserRepo{}, nil)
		_, err := us.UpdateUser(context.Background(), map[string]interface{}{"role": "admin"}, id, "token")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("invalid gender", func(t *testing.T) {
		us := NewUserService(&mockUserRepo{}, nil)
		_, err := us.UpdateUser(context.Background(), map[string]interface{}{"gender": "robot"}, id, "token")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("non string value", func(t *testing.T) {
		us := NewUserService(&mockUserRepo{}, nil)
		_, err := us.UpdateUser(context.Background(), map[string]interface{}{"fullname": 42}, id, "token")
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestUploadAvatar(t *testing.T) {
	repo := &mockUserRepo{}
	images := &mockImageStore{}
	us := NewUserService(repo, images)

	url, err := us.UploadAvatar(context.Background(), uuid.New(), "data:image/png;base64,AAAA", "token")
	require.NoError(t, err)
	assert.Contains(t, url, "avatars/")
	assert.Equal(t, url, repo.avatarURL)

	_, err = us.UploadAvatar(context.Background(), uuid.Nil, "x", "token")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUploadAvatarWithoutStorage(t *testing.T) {
	repo := &mockUserRepo{}
	us := NewUserService(repo, nil)
	_, err := us.UploadAvatar(context.Background(), uuid.New(), "data:image/png;base64,AAAA", "token")
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	assert.Empty(t, repo.avatarURL)
}
