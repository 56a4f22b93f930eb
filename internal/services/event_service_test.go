package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/notify"
	"github.com/joshua-takyi/eventhub/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockImageStore struct {
	mu        sync.Mutex
	uploads   int
	deleted   []string
	uploadErr error
}

func (m *mockImageStore) UploadImage(ctx context.Context, file interface{}, folder string) (*helpers.UploadedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads++
	id := fmt.Sprintf("%s/img-%d", folder, m.uploads)
	return &helpers.UploadedImage{URL: "https://res.cloudinary.com/demo/" + id + ".jpg", PublicID: id}, nil
}

func (m *mockImageStore) DeleteImage(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, publicID)
	return nil
}

type mockNotifier struct {
	mu      sync.Mutex
	notices []notify.EventChangeNotice
}

func (m *mockNotifier) NotifyAll(ctx context.Context, notices []notify.EventChangeNotice) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notices...)
	return len(notices), nil
}

func newEventService(store *storetest.Store, images helpers.ImageStore, notifier Notifier) *EventService {
	args := EventServiceArgs{
		Events:     store,
		Attendance: store,
		Tx:         store,
		Profiles:   store,
		Logger:     quietLogger(),
	}
	if images != nil {
		args.Images = images
	}
	if notifier != nil {
		args.Notifier = notifier
	}
	return NewEventService(args, WithEventNowFunc(func() time.Time { return dummyTime }))
}

func validCreateArgs() models.CreateEventArgs {
	return models.CreateEventArgs{
		Name:        "  Wine Tasting ",
		Venue:       "Student Union",
		StartsAt:    dummyTime.Add(24 * time.Hour),
		EndsAt:      dummyTime.Add(26 * time.Hour),
		Capacity:    30,
		Description: "Reds and whites",
	}
}

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(a *models.CreateEventArgs)
		expectedErr error
	}{
		{name: "valid"},
		{name: "missing name", mutate: func(a *models.CreateEventArgs) { a.Name = "   " }, expectedErr: models.ErrValidation},
		{name: "missing venue", mutate: func(a *models.CreateEventArgs) { a.Venue = "" }, expectedErr: models.ErrValidation},
		{name: "end before start", mutate: func(a *models.CreateEventArgs) { a.EndsAt = a.StartsAt.Add(-time.Minute) }, expectedErr: models.ErrValidation},
		{name: "end equals start", mutate: func(a *models.CreateEventArgs) { a.EndsAt = a.StartsAt }, expectedErr: models.ErrValidation},
		{name: "negative capacity", mutate: func(a *models.CreateEventArgs) { a.Capacity = -1 }, expectedErr: models.ErrValidation},
		{name: "unknown audience", mutate: func(a *models.CreateEventArgs) { a.Audience = "staff" }, expectedErr: models.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storetest.New()
			es := newEventService(store, nil, nil)
			args := validCreateArgs()
			if tt.mutate != nil {
				tt.mutate(&args)
			}

			event, err := es.CreateEvent(context.Background(), "admin-1", args)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				all, _ := store.ListEvents(context.Background())
				assert.Empty(t, all)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, event.ID)
			assert.Equal(t, "Wine Tasting", event.Name)
			assert.Equal(t, models.AudienceAll, event.Audience)
			assert.Equal(t, "admin-1", event.OwnerID)
			assert.Equal(t, dummyTime, event.CreatedAt)

			stored, err := store.GetEvent(context.Background(), event.ID)
			require.NoError(t, err)
			assert.Equal(t, event.Name, stored.Name)
		})
	}
}

func TestUpdateEvent(t *testing.T) {
	ptr := func(s string) *string { return &s }
	intPtr := func(i int) *int { return &i }
	timePtr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name        string
		caller      string
		attendees   int
		args        models.UpdateEventArgs
		expectedErr error
		check       func(t *testing.T, e *models.Event)
	}{
		{
			name:   "rename and move",
			caller: "admin-1",
			args:   models.UpdateEventArgs{Name: ptr(" Badminton Finals "), Venue: ptr("Arena")},
			check: func(t *testing.T, e *models.Event) {
				assert.Equal(t, "Badminton Finals", e.Name)
				assert.Equal(t, "Arena", e.Venue)
				assert.Equal(t, "Casual doubles", e.Description)
			},
		},
		{
			name:        "not the owner",
			caller:      "admin-2",
			args:        models.UpdateEventArgs{Name: ptr("Hijacked")},
			expectedErr: models.ErrForbidden,
		},
		{
			name:        "empty edit",
			caller:      "admin-1",
			expectedErr: models.ErrValidation,
		},
		{
			name:        "new end before existing start",
			caller:      "admin-1",
			args:        models.UpdateEventArgs{EndsAt: timePtr(dummyTime)},
			expectedErr: models.ErrValidation,
		},
		{
			name:        "capacity below attendance",
			caller:      "admin-1",
			attendees:   3,
			args:        models.UpdateEventArgs{Capacity: intPtr(2)},
			expectedErr: models.ErrCapacityBelowAttendance,
		},
		{
			name:      "capacity equal to attendance",
			caller:    "admin-1",
			attendees: 3,
			args:      models.UpdateEventArgs{Capacity: intPtr(3)},
			check: func(t *testing.T, e *models.Event) {
				assert.Equal(t, 3, e.Capacity)
				assert.Equal(t, 3, e.AttendeeCount)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storetest.New()
			es := newEventService(store, nil, nil)
			event := seedEvent(t, store, nil)
			for i := 0; i < tt.attendees; i++ {
				require.NoError(t, store.AddAttendance(context.Background(), &models.Attendance{EventID: event.ID, UserID: fmt.Sprintf("u%d", i)}))
			}

			updated, err := es.UpdateEvent(context.Background(), tt.caller, event.ID, tt.args)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				stored, getErr := store.GetEvent(context.Background(), event.ID)
				require.NoError(t, getErr)
				assert.Equal(t, event.Name, stored.Name)
				assert.Equal(t, event.Capacity, stored.Capacity)
				return
			}
			require.NoError(t, err)
			tt.check(t, updated)
		})
	}
}

func TestUpdateEventNotifiesAttendees(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	notifier := &mockNotifier{}
	es := newEventService(store, nil, notifier)
	event := seedEvent(t, store, nil)

	ama := &models.User{ID: uuid.New(), Email: "ama@example.com"}
	kofi := &models.User{ID: uuid.New(), Email: "kofi@example.com"}
	store.PutProfile(ama)
	store.PutProfile(kofi)
	for _, u := range []*models.User{ama, kofi} {
		require.NoError(t, store.AddAttendance(ctx, &models.Attendance{EventID: event.ID, UserID: u.ID.String()}))
	}

	newVenue := "Main Auditorium"
	cctx, cancel := context.WithCancel(ctx)
	_, err := es.UpdateEvent(cctx, event.OwnerID, event.ID, models.UpdateEventArgs{Venue: &newVenue})
	require.NoError(t, err)
	// the request ending must not stop the notifications
	cancel()
	es.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.notices, 2)
	emails := []string{notifier.notices[0].Email, notifier.notices[1].Email}
	assert.ElementsMatch(t, []string{"ama@example.com", "kofi@example.com"}, emails)
	assert.Equal(t, "Main Auditorium", notifier.notices[0].Venue)
	assert.Equal(t, event.Capacity, notifier.notices[0].Capacity)
}

func TestDeleteEventCascades(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	images := &mockImageStore{}
	es := newEventService(store, images, nil)
	ms := newMembership(store)

	doomed := seedEvent(t, store, func(e *models.Event) { e.ImagePublicID = "events/old" })
	kept := seedEvent(t, store, nil)
	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, ms.Join(ctx, doomed.ID, u))
	}
	require.NoError(t, ms.Join(ctx, kept.ID, "u1"))

	assert.ErrorIs(t, es.DeleteEvent(ctx, "admin-2", doomed.ID), models.ErrForbidden)
	assert.Equal(t, 3, countRows(store, doomed.ID, ""))

	require.NoError(t, es.DeleteEvent(ctx, doomed.OwnerID, doomed.ID))

	_, err := store.GetEvent(ctx, doomed.ID)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	assert.Zero(t, countRows(store, doomed.ID, ""))
	assert.Equal(t, 1, countRows(store, kept.ID, ""))
	assert.Equal(t, []string{"events/old"}, images.deleted)

	// re-running is safe and reports the event as gone
	assert.ErrorIs(t, es.DeleteEvent(ctx, doomed.OwnerID, doomed.ID), models.ErrEventNotFound)
	assert.Zero(t, countRows(store, doomed.ID, ""))
}

func TestDeleteEventClearsOrphanRows(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	es := newEventService(store, nil, nil)

	require.NoError(t, store.AddAttendance(ctx, &models.Attendance{EventID: "ghost", UserID: "u1"}))
	assert.ErrorIs(t, es.DeleteEvent(ctx, "admin-1", "ghost"), models.ErrEventNotFound)
	assert.Zero(t, countRows(store, "ghost", ""))
}

type failingDeleteStore struct {
	*storetest.Store
}

func (f failingDeleteStore) DeleteEvent(ctx context.Context, id string) error {
	return fmt.Errorf("%w: primary stepped down", models.ErrStoreUnavailable)
}

func TestDeleteEventRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	es := NewEventService(EventServiceArgs{
		Events:     failingDeleteStore{store},
		Attendance: store,
		Tx:         store,
		Logger:     quietLogger(),
	})
	event := seedEvent(t, store, nil)
	require.NoError(t, store.AddAttendance(ctx, &models.Attendance{EventID: event.ID, UserID: "u1"}))

	err := es.DeleteEvent(ctx, event.OwnerID, event.ID)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, 1, countRows(store, event.ID, ""))
}

func TestSetEventImage(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	images := &mockImageStore{}
	es := newEventService(store, images, nil)
	event := seedEvent(t, store, nil)

	updated, err := es.SetEventImage(ctx, event.OwnerID, event.ID, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/events/img-1.jpg", updated.ImageURL)
	assert.Empty(t, images.deleted)

	updated, err = es.SetEventImage(ctx, event.OwnerID, event.ID, "data:image/png;base64,BBBB")
	require.NoError(t, err)
	assert.Equal(t, "events/img-2", updated.ImagePublicID)
	assert.Equal(t, []string{"events/img-1"}, images.deleted)

	_, err = es.SetEventImage(ctx, "admin-2", event.ID, "data:image/png;base64,CCCC")
	assert.ErrorIs(t, err, models.ErrForbidden)

	images.uploadErr = errors.New("cloudinary down")
	_, err = es.SetEventImage(ctx, event.OwnerID, event.ID, "data:image/png;base64,DDDD")
	assert.Error(t, err)
}

func TestSetEventImageWithoutStorage(t *testing.T) {
	store := storetest.New()
	es := newEventService(store, nil, nil)
	event := seedEvent(t, store, nil)

	_, err := es.SetEventImage(context.Background(), event.OwnerID, event.ID, "data:image/png;base64,AAAA")
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	es := newEventService(store, nil, nil)
	seedEvent(t, store, func(e *models.Event) { e.Name = "Wine Test" })
	seedEvent(t, store, func(e *models.Event) { e.Name = "Badminton Night" })
	seedEvent(t, store, func(e *models.Event) {
		e.Name = "Ladies Tasting"
		e.Description = "WINE and cheese"
		e.Audience = models.AudienceFemale
	})

	got, err := es.Search(ctx, "wine", models.GenderFemale)
	require.NoError(t, err)
	names := []string{}
	for _, e := range got {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"Wine Test", "Ladies Tasting"}, names)

	got, err = es.Search(ctx, "wine", models.GenderMale)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Wine Test", got[0].Name)

	got, err = es.Search(ctx, "zzz", models.GenderMale)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListEventsAudience(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	es := newEventService(store, nil, nil)
	seedEvent(t, store, func(e *models.Event) { e.Name = "Open" })
	seedEvent(t, store, func(e *models.Event) {
		e.Name = "Men only"
		e.Audience = models.AudienceMale
	})
	seedEvent(t, store, func(e *models.Event) {
		e.Name = "Women only"
		e.Audience = models.AudienceFemale
	})

	tests := []struct {
		gender   models.Gender
		expected []string
	}{
		{gender: models.GenderMale, expected: []string{"Open", "Men only"}},
		{gender: models.GenderFemale, expected: []string{"Open", "Women only"}},
		{gender: models.GenderUnspecified, expected: []string{"Open"}},
		{gender: "", expected: []string{"Open", "Men only", "Women only"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.gender), func(t *testing.T) {
			got, err := es.ListEvents(ctx, tt.gender)
			require.NoError(t, err)
			names := []string{}
			for _, e := range got {
				names = append(names, e.Name)
			}
			assert.ElementsMatch(t, tt.expected, names)
		})
	}
}

func TestListByOwnerUsesLiveCounts(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	es := newEventService(store, nil, nil)
	mine := seedEvent(t, store, func(e *models.Event) { e.AttendeeCount = 99 })
	seedEvent(t, store, func(e *models.Event) { e.OwnerID = "admin-2" })
	require.NoError(t, store.AddAttendance(ctx, &models.Attendance{EventID: mine.ID, UserID: "u1"}))

	got, err := es.ListByOwner(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].AttendeeCount)
}
