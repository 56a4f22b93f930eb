// Package storetest provides an in-memory event store, attendance ledger and
// profile lookup for tests. Transactions are serialized and roll back on error.
package storetest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/eventhub/internal/models"
)

type Store struct {
	txMu sync.Mutex

	mu         sync.Mutex
	events     map[string]*models.Event
	attendance []*models.Attendance
	profiles   map[string]*models.User
	nextID     int

	// Fail, when set, is returned by every repository call.
	Fail error
}

func New() *Store {
	return &Store{
		events:   map[string]*models.Event{},
		profiles: map[string]*models.User{},
	}
}

func copyEvent(e *models.Event) *models.Event {
	c := *e
	return &c
}

func (s *Store) failed() error {
	return s.Fail
}

// WithTransaction runs fn with exclusive access and restores the previous
// state if fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	events := make(map[string]*models.Event, len(s.events))
	for k, v := range s.events {
		events[k] = copyEvent(v)
	}
	attendance := make([]*models.Attendance, len(s.attendance))
	for i, a := range s.attendance {
		c := *a
		attendance[i] = &c
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.events = events
		s.attendance = attendance
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	e, ok := s.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (s *Store) UpdateEvent(ctx context.Context, id string, u models.EventUpdate) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	e, ok := s.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
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
	if u.ImageURL != nil {
		e.ImageURL = *u.ImageURL
	}
	if u.ImagePublicID != nil {
		e.ImagePublicID = *u.ImagePublicID
	}
	e.UpdatedAt = time.Now().UTC()
	return copyEvent(e), nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	if _, ok := s.events[id]; !ok {
		return models.ErrEventNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *Store) SetAttendeeCount(ctx context.Context, id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	e, ok := s.events[id]
	if !ok {
		return models.ErrEventNotFound
	}
	e.AttendeeCount = count
	return nil
}

func (s *Store) listWhere(match func(*models.Event) bool) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	out := []*models.Event{}
	for _, e := range s.events {
		if match(e) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]*models.Event, error) {
	return s.listWhere(func(*models.Event) bool { return true })
}

func (s *Store) ListEventsByOwner(ctx context.Context, ownerID string) ([]*models.Event, error) {
	return s.listWhere(func(e *models.Event) bool { return e.OwnerID == ownerID })
}

func (s *Store) ListEventsByIDs(ctx context.Context, ids []string) ([]*models.Event, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.listWhere(func(e *models.Event) bool { return want[e.ID] })
}

func (s *Store) SearchEvents(ctx context.Context, keyword string) ([]*models.Event, error) {
	return s.listWhere(func(e *models.Event) bool { return e.MatchesKeyword(keyword) })
}

func (s *Store) AddAttendance(ctx context.Context, a *models.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	for _, r := range s.attendance {
		if r.EventID == a.EventID && r.UserID == a.UserID {
			return models.ErrAlreadyJoined
		}
	}
	s.nextID++
	a.ID = "att-" + strconv.Itoa(s.nextID)
	c := *a
	s.attendance = append(s.attendance, &c)
	return nil
}

func (s *Store) FindAttendance(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	for _, r := range s.attendance {
		if r.EventID == eventID && r.UserID == userID {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) removeWhere(match func(*models.Attendance) bool) int64 {
	kept := s.attendance[:0]
	var removed int64
	for _, r := range s.attendance {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.attendance = kept
	return removed
}

func (s *Store) RemoveAttendance(ctx context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	n := s.removeWhere(func(r *models.Attendance) bool { return r.EventID == eventID && r.UserID == userID })
	if n == 0 {
		return models.ErrNotJoined
	}
	return nil
}

func (s *Store) RemoveEventAttendance(ctx context.Context, eventID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return 0, err
	}
	return s.removeWhere(func(r *models.Attendance) bool { return r.EventID == eventID }), nil
}

func (s *Store) CountAttendance(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range s.attendance {
		if r.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountAttendanceByEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(eventIDs))
	for _, id := range eventIDs {
		counts[id] = 0
	}
	for _, r := range s.attendance {
		if _, ok := counts[r.EventID]; ok {
			counts[r.EventID]++
		}
	}
	return counts, nil
}

func (s *Store) listAttendance(match func(*models.Attendance) bool) ([]*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	var out []*models.Attendance
	for _, r := range s.attendance {
		if match(r) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) ListAttendanceByEvent(ctx context.Context, eventID string) ([]*models.Attendance, error) {
	return s.listAttendance(func(r *models.Attendance) bool { return r.EventID == eventID })
}

func (s *Store) ListAttendanceByUser(ctx context.Context, userID string) ([]*models.Attendance, error) {
	return s.listAttendance(func(r *models.Attendance) bool { return r.UserID == userID })
}

// PutProfile registers a profile for GetProfile and GetProfiles.
func (s *Store) PutProfile(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.profiles[strings.ToLower(u.ID.String())] = &c
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	u, ok := s.profiles[strings.ToLower(id)]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) GetProfiles(ctx context.Context, ids []string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return nil, err
	}
	var out []*models.User
	for _, id := range ids {
		if u, ok := s.profiles[strings.ToLower(id)]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// AttendanceRows returns a copy of every ledger row.
func (s *Store) AttendanceRows() []models.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Attendance, 0, len(s.attendance))
	for _, r := range s.attendance {
		out = append(out, *r)
	}
	return out
}
