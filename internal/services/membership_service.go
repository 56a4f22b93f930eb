package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/eventhub/internal/models"
)

// MembershipService mediates join and leave between users and events. The
// attendance ledger is the source of truth for attendee counts.
type MembershipService struct {
	events     models.EventsRepo
	attendance models.AttendanceRepo
	tx         models.TxRunner
	profiles   models.ProfileLookup
	logger     *slog.Logger
	nowFunc    func() time.Time
}

type MembershipServiceArgs struct {
	Events     models.EventsRepo
	Attendance models.AttendanceRepo
	Tx         models.TxRunner
	// Profiles resolves attendee names and the joiner's gender for
	// audience-restricted events.
	Profiles models.ProfileLookup
	Logger   *slog.Logger
}

type MembershipOptArgs = func(*MembershipService)

// WithMembershipNowFunc overrides the clock used for joined_at. Useful for testing.
func WithMembershipNowFunc(nowFunc func() time.Time) MembershipOptArgs {
	return func(ms *MembershipService) {
		ms.nowFunc = nowFunc
	}
}

func NewMembershipService(args MembershipServiceArgs, optArgs ...MembershipOptArgs) *MembershipService {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ms := &MembershipService{
		events:     args.Events,
		attendance: args.Attendance,
		tx:         args.Tx,
		profiles:   args.Profiles,
		logger:     logger,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range optArgs {
		opt(ms)
	}
	return ms
}

// Join adds userID to the event's attendance. The capacity check, duplicate
// check, insert and cached count rewrite commit together or not at all.
func (ms *MembershipService) Join(ctx context.Context, eventID, userID string) error {
	if eventID == "" || userID == "" {
		return fmt.Errorf("%w: event id and user id are required", models.ErrValidation)
	}

	event, err := ms.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := ms.checkAudience(ctx, event, userID); err != nil {
		return err
	}

	err = ms.tx.WithTransaction(ctx, func(ctx context.Context) error {
		event, err := ms.events.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		n, err := ms.attendance.CountAttendance(ctx, eventID)
		if err != nil {
			return err
		}
		if n >= event.Capacity {
			return models.ErrEventFull
		}
		existing, err := ms.attendance.FindAttendance(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.ErrAlreadyJoined
		}
		if err := ms.attendance.AddAttendance(ctx, &models.Attendance{
			EventID:  eventID,
			UserID:   userID,
			JoinedAt: ms.nowFunc(),
		}); err != nil {
			return err
		}
		// writing the shared event document makes concurrent joins conflict
		return ms.events.SetAttendeeCount(ctx, eventID, n+1)
	})
	if err != nil {
		return err
	}

	ms.logger.Info("user joined event", "event_id", eventID, "user_id", userID)
	return nil
}

func (ms *MembershipService) checkAudience(ctx context.Context, event *models.Event, userID string) error {
	if event.Admits("") {
		return nil
	}
	if ms.profiles == nil {
		return models.ErrAudienceMismatch
	}
	profile, err := ms.profiles.GetProfile(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.ErrAudienceMismatch
	}
	if err != nil {
		return fmt.Errorf("%w: load profile: %w", models.ErrStoreUnavailable, err)
	}
	if !event.Admits(profile.Gender) {
		return models.ErrAudienceMismatch
	}
	return nil
}

// Leave removes userID from the event. It returns ErrNotJoined if there was
// no attendance row.
func (ms *MembershipService) Leave(ctx context.Context, eventID, userID string) error {
	if eventID == "" || userID == "" {
		return fmt.Errorf("%w: event id and user id are required", models.ErrValidation)
	}

	err := ms.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := ms.attendance.RemoveAttendance(ctx, eventID, userID); err != nil {
			return err
		}
		n, err := ms.attendance.CountAttendance(ctx, eventID)
		if err != nil {
			return err
		}
		err = ms.events.SetAttendeeCount(ctx, eventID, n)
		if errors.Is(err, models.ErrEventNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	ms.logger.Info("user left event", "event_id", eventID, "user_id", userID)
	return nil
}

// LiveAttendeeCount counts attendance rows at read time.
func (ms *MembershipService) LiveAttendeeCount(ctx context.Context, eventID string) (int, error) {
	if _, err := ms.events.GetEvent(ctx, eventID); err != nil {
		return 0, err
	}
	return ms.attendance.CountAttendance(ctx, eventID)
}

// ListAttendees returns the attendees of an event with their profiles. Only the
// owning admin may call it.
func (ms *MembershipService) ListAttendees(ctx context.Context, eventID, requesterID string) ([]models.Attendee, error) {
	event, err := ms.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != requesterID {
		return nil, models.ErrForbidden
	}

	rows, err := ms.attendance.ListAttendanceByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	attendees := make([]models.Attendee, 0, len(rows))
	if len(rows) == 0 {
		return attendees, nil
	}

	byID := map[string]*models.User{}
	if ms.profiles != nil {
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.UserID)
		}
		profiles, err := ms.profiles.GetProfiles(ctx, ids)
		if err != nil {
			// attendance is still useful without names
			ms.logger.Warn("failed to load attendee profiles", "event_id", eventID, "error", err)
		}
		for _, p := range profiles {
			byID[p.ID.String()] = p
		}
	}

	for _, r := range rows {
		attendees = append(attendees, models.Attendee{Attendance: *r, Profile: byID[r.UserID]})
	}
	return attendees, nil
}

// RemoveAttendee lets the owning admin drop a user from their event.
func (ms *MembershipService) RemoveAttendee(ctx context.Context, eventID, ownerID, userID string) error {
	event, err := ms.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OwnerID != ownerID {
		return models.ErrForbidden
	}
	if err := ms.Leave(ctx, eventID, userID); err != nil {
		return err
	}
	ms.logger.Info("attendee removed by owner", "event_id", eventID, "owner_id", ownerID, "user_id", userID)
	return nil
}

// JoinedEvents is the user's timetable, ordered by start time.
func (ms *MembershipService) JoinedEvents(ctx context.Context, userID string) ([]*models.Event, error) {
	rows, err := ms.attendance.ListAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []*models.Event{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.EventID)
	}
	events, err := ms.events.ListEventsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return withLiveCounts(ctx, ms.attendance, events)
}

// withLiveCounts overwrites the cached attendee_count with ledger counts.
func withLiveCounts(ctx context.Context, attendance models.AttendanceRepo, events []*models.Event) ([]*models.Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	counts, err := attendance.CountAttendanceByEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		e.AttendeeCount = counts[e.ID]
	}
	return events, nil
}
