package models

import (
	"strings"
	"time"
)

type Audience string

const (
	AudienceAll    Audience = "all"
	AudienceMale   Audience = "male"
	AudienceFemale Audience = "female"
)

type Event struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Venue         string    `json:"venue"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Capacity      int       `json:"capacity"`
	Description   string    `json:"description"`
	Audience      Audience  `json:"audience"`
	OwnerID       string    `json:"owner_id"`
	ImageURL      string    `json:"image_url,omitempty"`
	ImagePublicID string    `json:"-"`
	// AttendeeCount is a cache rewritten on every join/leave. Capacity checks
	// always count the attendance ledger instead.
	AttendeeCount int       `json:"attendee_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VisibleTo reports whether a user of the given gender may see and join the event.
// An empty gender means the profile could not be loaded.
func (e *Event) VisibleTo(g Gender) bool {
	switch e.Audience {
	case AudienceAll, "":
		return true
	case AudienceMale:
		return g == "" || g == GenderMale
	case AudienceFemale:
		return g == "" || g == GenderFemale
	}
	return false
}

// Admits is the stricter join-time check: a restricted event only admits users
// whose gender is known and matches.
func (e *Event) Admits(g Gender) bool {
	switch e.Audience {
	case AudienceAll, "":
		return true
	}
	return string(e.Audience) == string(g)
}

// MatchesKeyword does a case-insensitive substring match over name, venue and description.
func (e *Event) MatchesKeyword(keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), kw) ||
		strings.Contains(strings.ToLower(e.Venue), kw) ||
		strings.Contains(strings.ToLower(e.Description), kw)
}

type CreateEventArgs struct {
	Name        string    `json:"name" validate:"required,max=120"`
	Venue       string    `json:"venue" validate:"required,max=200"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Capacity    int       `json:"capacity" validate:"min=0"`
	Description string    `json:"description" validate:"required"`
	Audience    Audience  `json:"audience" validate:"omitempty,oneof=all male female"`
}

// UpdateEventArgs carries a partial edit. Nil fields are left untouched.
type UpdateEventArgs struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=120"`
	Venue       *string    `json:"venue" validate:"omitempty,min=1,max=200"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=0"`
	Description *string    `json:"description" validate:"omitempty,min=1"`
	Audience    *Audience  `json:"audience" validate:"omitempty,oneof=all male female"`
}

func (a *CreateEventArgs) Sanitize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Venue = strings.TrimSpace(a.Venue)
	a.Description = strings.TrimSpace(a.Description)
	if a.Audience == "" {
		a.Audience = AudienceAll
	}
}

func (u *UpdateEventArgs) Sanitize() {
	for _, s := range []*string{u.Name, u.Venue, u.Description} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (u UpdateEventArgs) IsEmpty() bool {
	return u.Name == nil && u.Venue == nil && u.StartsAt == nil && u.EndsAt == nil &&
		u.Capacity == nil && u.Description == nil && u.Audience == nil
}

// Apply merges the edit into e. It does not validate the result.
func (u UpdateEventArgs) Apply(e *Event) {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Venue != nil {
		e.Venue = *u.Venue
	}
	if u.StartsAt != nil {
		e.StartsAt = *u.StartsAt
	}
	if u.EndsAt != nil {
		e.EndsAt = *u.EndsAt
	}
	if u.Capacity != nil {
		e.Capacity = *u.Capacity
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Audience != nil {
		e.Audience = *u.Audience
	}
}

// EventUpdate is the storage-level partial update built from a validated edit.
type EventUpdate struct {
	Name          *string
	Venue         *string
	StartsAt      *time.Time
	EndsAt        *time.Time
	Capacity      *int
	Description   *string
	Audience      *Audience
	ImageURL      *string
	ImagePublicID *string
}

func (u UpdateEventArgs) ToEventUpdate() EventUpdate {
	return EventUpdate{
		Name:        u.Name,
		Venue:       u.Venue,
		StartsAt:    u.StartsAt,
		EndsAt:      u.EndsAt,
		Capacity:    u.Capacity,
		Description: u.Description,
		Audience:    u.Audience,
	}
}
