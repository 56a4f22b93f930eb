package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

type UserService struct {
	userRepo models.UserRepo
	images   helpers.ImageStore
}

func NewUserService(userRepo models.UserRepo, images helpers.ImageStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		images:   images,
	}
}

func (us *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.Sanitize()
	// roles are granted out of band, never at sign-up
	user.Role = models.RoleUser
	if err := models.Validate.Struct(user); err != nil {
		return nil, validationErr(err)
	}
	if !helpers.IsPasswordStrong(user.Password) {
		return nil, fmt.Errorf("%w: password must have 8+ characters with upper and lower case letters, a number and a symbol", models.ErrValidation)
	}

	created, err := us.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (us *UserService) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email format", models.ErrValidation)
	}
	if err := models.Validate.Var(password, "required,min=8"); err != nil {
		return nil, fmt.Errorf("%w: invalid password format", models.ErrValidation)
	}
	response, err := us.userRepo.AuthenticateUser(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %v", err)
	}
	return response, nil
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}
	response, err := us.userRepo.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %v", err)
	}
	return response, nil
}

// RequestPasswordReset always succeeds for well-formed emails so that callers
// cannot probe which addresses are registered.
func (us *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: invalid email format", models.ErrValidation)
	}
	return us.userRepo.SendPasswordReset(ctx, email)
}

func (us *UserService) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	return us.userRepo.GetUser(ctx, id, accessToken)
}

// UpdateUser applies a profile edit. Keys outside the editable set are dropped.
func (us *UserService) UpdateUser(ctx context.Context, fields map[string]interface{}, userid uuid.UUID, accessToken string) (*models.User, error) {
	fields = models.FilterProfileUpdate(fields)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no editable fields provided", models.ErrValidation)
	}

	rules := map[string]string{
		"fullname":     "min=1,max=100",
		"phone_number": "omitempty,phone",
		"bio":          "max=1000",
		"gender":       "oneof=male female unspecified",
	}
	for key, rule := range rules {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", models.ErrValidation, key)
		}
		s = strings.TrimSpace(s)
		if err := models.Validate.Var(s, rule); err != nil {
			return nil, fmt.Errorf("%w: invalid %s", models.ErrValidation, key)
		}
		fields[key] = s
	}

	return us.userRepo.UpdateUser(ctx, fields, userid, accessToken)
}

// UploadAvatar stores the image in Cloudinary and saves its URL on the profile.
func (us *UserService) UploadAvatar(ctx context.Context, userId uuid.UUID, image interface{}, accessToken string) (string, error) {
	if userId == uuid.Nil {
		return "", fmt.Errorf("%w: no valid UUID provided", models.ErrValidation)
	}
	if us.images == nil {
		return "", fmt.Errorf("%w: image storage is not configured", models.ErrServiceUnavailable)
	}

	img, err := us.images.UploadImage(ctx, image, helpers.AvatarFolder)
	if err != nil {
		return "", err
	}

	avatarURL, err := us.userRepo.UpdateAvatar(ctx, userId, img.URL, accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}
	return avatarURL, nil
}
