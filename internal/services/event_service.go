package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/notify"
)

const notifyTimeout = 2 * time.Minute

// Notifier delivers event change notices to attendees.
type Notifier interface {
	NotifyAll(ctx context.Context, notices []notify.EventChangeNotice) (int, error)
}

type EventService struct {
	events     models.EventsRepo
	attendance models.AttendanceRepo
	tx         models.TxRunner
	images     helpers.ImageStore
	profiles   models.ProfileLookup
	notifier   Notifier
	logger     *slog.Logger
	nowFunc    func() time.Time

	background sync.WaitGroup
}

type EventServiceArgs struct {
	Events     models.EventsRepo
	Attendance models.AttendanceRepo
	Tx         models.TxRunner
	// Images, Profiles and Notifier are optional. Without them image upload
	// fails and attendee notification is skipped.
	Images   helpers.ImageStore
	Profiles models.ProfileLookup
	Notifier Notifier
	Logger   *slog.Logger
}

type EventServiceOptArgs = func(*EventService)

// WithEventNowFunc overrides the clock used for timestamps. Useful for testing.
func WithEventNowFunc(nowFunc func() time.Time) EventServiceOptArgs {
	return func(es *EventService) {
		es.nowFunc = nowFunc
	}
}

func NewEventService(args EventServiceArgs, optArgs ...EventServiceOptArgs) *EventService {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	es := &EventService{
		events:     args.Events,
		attendance: args.Attendance,
		tx:         args.Tx,
		images:     args.Images,
		profiles:   args.Profiles,
		notifier:   args.Notifier,
		logger:     logger,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range optArgs {
		opt(es)
	}
	return es
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", models.ErrValidation, err)
}

func (es *EventService) CreateEvent(ctx context.Context, ownerID string, args models.CreateEventArgs) (*models.Event, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrValidation)
	}
	args.Sanitize()
	if err := models.Validate.Struct(args); err != nil {
		return nil, validationErr(err)
	}

	now := es.nowFunc()
	event := &models.Event{
		ID:          uuid.NewString(),
		Name:        args.Name,
		Venue:       args.Venue,
		StartsAt:    args.StartsAt.UTC(),
		EndsAt:      args.EndsAt.UTC(),
		Capacity:    args.Capacity,
		Description: args.Description,
		Audience:    args.Audience,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := es.events.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	es.logger.Info("event created", "event_id", event.ID, "owner_id", ownerID)
	return event, nil
}

// GetEvent returns the event with its live attendee count.
func (es *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := es.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := es.attendance.CountAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	event.AttendeeCount = n
	return event, nil
}

func (es *EventService) ownedEvent(ctx context.Context, ownerID, eventID string) (*models.Event, error) {
	event, err := es.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	return event, nil
}

// UpdateEvent applies a partial edit by the owning admin and then emails the
// event's attendees in the background.
func (es *EventService) UpdateEvent(ctx context.Context, ownerID, eventID string, args models.UpdateEventArgs) (*models.Event, error) {
	if args.IsEmpty() {
		return nil, fmt.Errorf("%w: no fields to update", models.ErrValidation)
	}
	args.Sanitize()
	if err := models.Validate.Struct(args); err != nil {
		return nil, validationErr(err)
	}

	var updated *models.Event
	err := es.tx.WithTransaction(ctx, func(ctx context.Context) error {
		event, err := es.ownedEvent(ctx, ownerID, eventID)
		if err != nil {
			return err
		}

		merged := *event
		args.Apply(&merged)
		if !merged.EndsAt.After(merged.StartsAt) {
			return fmt.Errorf("%w: ends_at must be after starts_at", models.ErrValidation)
		}

		n, err := es.attendance.CountAttendance(ctx, eventID)
		if err != nil {
			return err
		}
		if args.Capacity != nil && *args.Capacity < n {
			return fmt.Errorf("%w: %d attendees already joined", models.ErrCapacityBelowAttendance, n)
		}

		updated, err = es.events.UpdateEvent(ctx, eventID, args.ToEventUpdate())
		if err != nil {
			return err
		}
		updated.AttendeeCount = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	es.logger.Info("event updated", "event_id", eventID, "owner_id", ownerID)
	es.notifyAttendeesAsync(ctx, updated)
	return updated, nil
}

func (es *EventService) notifyAttendeesAsync(ctx context.Context, event *models.Event) {
	if es.notifier == nil || es.profiles == nil {
		return
	}
	snapshot := *event
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)

	es.background.Add(1)
	go func() {
		defer es.background.Done()
		defer cancel()
		es.notifyAttendees(bg, &snapshot)
	}()
}

func (es *EventService) notifyAttendees(ctx context.Context, event *models.Event) {
	rows, err := es.attendance.ListAttendanceByEvent(ctx, event.ID)
	if err != nil {
		es.logger.Warn("failed to list attendees for notification", "event_id", event.ID, "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	profiles, err := es.profiles.GetProfiles(ctx, ids)
	if err != nil {
		es.logger.Warn("failed to load attendee profiles for notification", "event_id", event.ID, "error", err)
		return
	}

	notices := make([]notify.EventChangeNotice, 0, len(profiles))
	for _, p := range profiles {
		if p.Email == "" {
			continue
		}
		notices = append(notices, notify.EventChangeNotice{
			Email:     p.Email,
			EventName: event.Name,
			Venue:     event.Venue,
			StartsAt:  event.StartsAt,
			EndsAt:    event.EndsAt,
			Capacity:  event.Capacity,
		})
	}

	sent, err := es.notifier.NotifyAll(ctx, notices)
	if err != nil {
		es.logger.Warn("attendee notification interrupted", "event_id", event.ID, "error", err)
	}
	es.logger.Info("attendees notified", "event_id", event.ID, "sent", sent, "total", len(notices))
}

// Wait blocks until background notifications have finished.
func (es *EventService) Wait() {
	es.background.Wait()
}

// DeleteEvent removes the event and every attendance row that references it
// in one transaction. Running it again for an already deleted id clears any
// stray attendance rows and reports ErrEventNotFound.
func (es *EventService) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	event, err := es.events.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrEventNotFound) {
		if _, purgeErr := es.attendance.RemoveEventAttendance(ctx, eventID); purgeErr != nil {
			return purgeErr
		}
		return err
	}
	if err != nil {
		return err
	}
	if event.OwnerID != ownerID {
		return models.ErrForbidden
	}

	var removed int64
	err = es.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := es.attendance.RemoveEventAttendance(ctx, eventID)
		if err != nil {
			return err
		}
		removed = n
		return es.events.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		return err
	}

	if event.ImagePublicID != "" && es.images != nil {
		if err := es.images.DeleteImage(ctx, event.ImagePublicID); err != nil {
			es.logger.Warn("failed to delete event image", "event_id", eventID, "public_id", event.ImagePublicID, "error", err)
		}
	}

	es.logger.Info("event deleted", "event_id", eventID, "owner_id", ownerID, "attendance_removed", removed)
	return nil
}

// SetEventImage uploads a new image for the event and removes the previous one.
func (es *EventService) SetEventImage(ctx context.Context, ownerID, eventID string, file interface{}) (*models.Event, error) {
	if es.images == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", models.ErrServiceUnavailable)
	}
	event, err := es.ownedEvent(ctx, ownerID, eventID)
	if err != nil {
		return nil, err
	}

	img, err := es.images.UploadImage(ctx, file, helpers.EventsFolder)
	if err != nil {
		return nil, err
	}

	updated, err := es.events.UpdateEvent(ctx, eventID, models.EventUpdate{
		ImageURL:      &img.URL,
		ImagePublicID: &img.PublicID,
	})
	if err != nil {
		if delErr := es.images.DeleteImage(ctx, img.PublicID); delErr != nil {
			es.logger.Warn("failed to roll back uploaded image", "public_id", img.PublicID, "error", delErr)
		}
		return nil, err
	}

	if event.ImagePublicID != "" && event.ImagePublicID != img.PublicID {
		if err := es.images.DeleteImage(ctx, event.ImagePublicID); err != nil {
			es.logger.Warn("failed to delete previous event image", "event_id", eventID, "public_id", event.ImagePublicID, "error", err)
		}
	}
	return updated, nil
}

// ListEvents is the explore list: every event the given gender may see.
func (es *EventService) ListEvents(ctx context.Context, gender models.Gender) ([]*models.Event, error) {
	events, err := es.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return withLiveCounts(ctx, es.attendance, visibleTo(events, gender))
}

func (es *EventService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Event, error) {
	events, err := es.events.ListEventsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return withLiveCounts(ctx, es.attendance, events)
}

// Search matches keyword against name, venue and description.
func (es *EventService) Search(ctx context.Context, keyword string, gender models.Gender) ([]*models.Event, error) {
	events, err := es.events.SearchEvents(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return withLiveCounts(ctx, es.attendance, visibleTo(events, gender))
}

func visibleTo(events []*models.Event, gender models.Gender) []*models.Event {
	out := make([]*models.Event, 0, len(events))
	for _, e := range events {
		if e.VisibleTo(gender) {
			out = append(out, e)
		}
	}
	return out
}
