package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MembershipMongoSuite runs joins against a real replica set so write
// conflicts between transactions actually happen. Set MONGODB_URL.
type MembershipMongoSuite struct {
	suite.Suite
	client *mongo.Client
	repo   *models.MongodbRepo
	dbName string
}

func TestMembershipMongoSuite(t *testing.T) {
	if os.Getenv("MONGODB_URL") == "" {
		t.Skip("MONGODB_URL not set")
	}
	suite.Run(t, new(MembershipMongoSuite))
}

func (s *MembershipMongoSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGODB_URL")))
	s.Require().NoError(err)
	s.Require().NoError(client.Ping(ctx, nil))

	s.client = client
	s.dbName = fmt.Sprintf("campus_events_membership_%d", time.Now().UnixNano())
	s.repo = models.MongodbNewRepo(client, s.dbName)
	s.Require().NoError(s.repo.EnsureIndexes(ctx))
}

func (s *MembershipMongoSuite) TearDownSuite() {
	ctx := context.Background()
	_ = s.client.Database(s.dbName).Drop(ctx)
	_ = s.client.Disconnect(ctx)
}

func (s *MembershipMongoSuite) TestConcurrentJoinsRetryConflicts() {
	const capacity = 3
	const joiners = 12
	ctx := context.Background()

	event := &models.Event{
		ID:          uuid.NewString(),
		Name:        "Badminton Night",
		Venue:       "Sports Hall",
		StartsAt:    dummyTime.Add(48 * time.Hour),
		EndsAt:      dummyTime.Add(50 * time.Hour),
		Capacity:    capacity,
		Description: "Casual doubles",
		Audience:    models.AudienceAll,
		OwnerID:     "admin-1",
		CreatedAt:   dummyTime,
		UpdatedAt:   dummyTime,
	}
	s.Require().NoError(s.repo.CreateEvent(ctx, event))

	ms := NewMembershipService(MembershipServiceArgs{
		Events:     s.repo,
		Attendance: s.repo,
		Tx:         s.repo,
		Logger:     quietLogger(),
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		joined  int
		full    int
		failure []error
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := ms.Join(ctx, event.ID, fmt.Sprintf("user-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, models.ErrEventFull):
				full++
			default:
				failure = append(failure, err)
			}
		}(i)
	}
	wg.Wait()

	s.Empty(failure)
	s.Equal(capacity, joined)
	s.Equal(joiners-capacity, full)

	n, err := s.repo.CountAttendance(ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(capacity, n)

	got, err := s.repo.GetEvent(ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(capacity, got.AttendeeCount)
}
