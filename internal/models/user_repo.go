package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

const (
	ProfileTable = "profiles"

	profileColumnList = "id,fullname,email,phone_number,bio,gender,role,avatar_url,created_at,updated_at"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	SendPasswordReset(ctx context.Context, email string) error
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error)
	UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*User, error)
	UpdateAvatar(ctx context.Context, userId uuid.UUID, avatarURL string, accessToken string) (string, error)
}

// ProfileLookup resolves profiles across users. It reads with the service
// client, so callers must enforce their own access rules.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id string) (*User, error)
	GetProfiles(ctx context.Context, ids []string) ([]*User, error)
}

func ConvertToUser(raw map[string]interface{}) (*User, error) {
	userBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw user: %v", err)
	}

	user := &User{}
	if err := json.Unmarshal(userBytes, user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to user struct: %v", err)
	}

	return user, nil
}

func (su *SupabaseRepo) clientFor(accessToken string) (*supabase.Client, error) {
	if accessToken == "" {
		return su.supabaseClient, nil
	}
	authClient, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}
	return authClient, nil
}

// CreateUser registers the account with Supabase auth and writes the
// matching profiles row.
func (su *SupabaseRepo) CreateUser(ctx context.Context, user *User) (*User, error) {
	res, err := su.supabaseClient.Auth.Signup(types.SignupRequest{
		Email:    user.Email,
		Password: user.Password,
		Data: map[string]interface{}{
			"fullname": user.FullName,
		},
	})
	if err != nil {
		errMsg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(errMsg, "already registered"), strings.Contains(errMsg, "unique constraint"):
			return nil, fmt.Errorf("%w: email already in use", ErrValidation)
		case strings.Contains(errMsg, "password"):
			return nil, fmt.Errorf("%w: password rejected by identity provider", ErrValidation)
		case strings.Contains(errMsg, "invalid input syntax"):
			return nil, fmt.Errorf("%w: invalid input format", ErrValidation)
		}
		return nil, fmt.Errorf("failed to create user: %v", err)
	}

	id := res.User.ID
	if id == uuid.Nil {
		id = res.Session.User.ID
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("identity provider returned no user id")
	}

	now := time.Now().UTC()
	row := map[string]interface{}{
		"id":           id.String(),
		"fullname":     user.FullName,
		"email":        user.Email,
		"phone_number": user.PhoneNumber,
		"bio":          user.Bio,
		"gender":       string(user.Gender),
		"role":         user.Role,
		"created_at":   now,
		"updated_at":   now,
	}
	raw, _, err := su.serviceClient.From(ProfileTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %v", err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil || len(users) == 0 {
		created := *user
		created.ID = id
		created.Password = ""
		created.CreatedAt, created.UpdatedAt = now, now
		return &created, nil
	}
	return &users[0], nil
}

func (su *SupabaseRepo) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid UUID", ErrValidation)
	}

	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	raw, status, err := client.From(ProfileTable).
		Select(profileColumnList, "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%v", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get user by ID: %v", err)
	}

	// Supabase returns an array even for single results
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user rows: %v", err)
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

func (su *SupabaseRepo) GetProfile(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id %q", ErrValidation, id)
	}
	users, err := su.GetProfiles(ctx, []string{uid.String()})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

// GetProfiles loads several profiles in one IN query. Missing ids are skipped.
func (su *SupabaseRepo) GetProfiles(ctx context.Context, ids []string) ([]*User, error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}
	raw, _, err := su.serviceClient.From(ProfileTable).
		Select(profileColumnList, "", false).
		In("id", ids).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %v", err)
	}
	var users []*User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile rows: %v", err)
	}
	return users, nil
}

func (su *SupabaseRepo) UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*User, error) {
	if userid == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid UUID", ErrValidation)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	client, err := su.clientFor(accessToken)
	if err != nil {
		return nil, err
	}

	fields["updated_at"] = time.Now().UTC()
	raw, count, err := client.From(ProfileTable).
		Update(fields, "", "exact").
		Eq("id", userid.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %v", err)
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}

	var rawUsers []map[string]interface{}
	if err := json.Unmarshal(raw, &rawUsers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated user: %v", err)
	}
	if len(rawUsers) == 0 {
		return nil, fmt.Errorf("no user data returned after update")
	}

	return ConvertToUser(rawUsers[0])
}

func (su *SupabaseRepo) UpdateAvatar(ctx context.Context, userId uuid.UUID, avatarURL string, accessToken string) (string, error) {
	updated, err := su.UpdateUser(ctx, map[string]interface{}{"avatar_url": avatarURL}, userId, accessToken)
	if err != nil {
		return "", err
	}
	return updated.AvatarURL, nil
}

func (su *SupabaseRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %v", err)
	}
	return resp, nil
}

func (su *SupabaseRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	resp, err := su.supabaseClient.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %v", err)
	}
	return resp, nil
}

// SendPasswordReset asks Supabase to email a recovery link.
func (su *SupabaseRepo) SendPasswordReset(ctx context.Context, email string) error {
	if err := su.supabaseClient.Auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("failed to send password reset: %v", err)
	}
	return nil
}
