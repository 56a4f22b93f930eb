package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FullName    string    `db:"fullname" json:"fullname" validate:"required,max=100"`
	Email       string    `db:"email" json:"email" validate:"required,email"`
	Password    string    `db:"-" json:"password,omitempty" validate:"required,min=8"`
	PhoneNumber string    `db:"phone_number" json:"phone_number" validate:"omitempty,phone"`
	Bio         string    `db:"bio" json:"bio" validate:"max=1000"`
	Gender      Gender    `db:"gender" json:"gender" validate:"omitempty,oneof=male female unspecified"`
	Role        string    `db:"role" json:"role" validate:"omitempty,oneof=admin user"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Sanitize() {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.PhoneNumber = strings.TrimSpace(u.PhoneNumber)
	u.Bio = strings.TrimSpace(u.Bio)
	if u.Gender == "" {
		u.Gender = GenderUnspecified
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
}

// profileColumns are the profile fields the API allows a user to edit.
var profileColumns = map[string]bool{
	"fullname":     true,
	"phone_number": true,
	"bio":          true,
	"gender":       true,
	"avatar_url":   true,
}

// FilterProfileUpdate drops keys a client may not write (role, email, id...).
func FilterProfileUpdate(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if profileColumns[k] {
			out[k] = v
		}
	}
	return out
}
