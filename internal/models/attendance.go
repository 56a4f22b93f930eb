package models

import (
	"time"
)

// Attendance is one row of the attendance ledger: user UserID joined event EventID.
type Attendance struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Attendee is an attendance row joined client-side with the user's profile.
type Attendee struct {
	Attendance
	Profile *User `json:"profile,omitempty"`
}
