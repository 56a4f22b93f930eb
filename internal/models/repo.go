package models

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DefaultDbName     = "campus_events"
	EventsColName     = "events"
	AttendanceColName = "attendance"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// TxRunner runs fn atomically. Repository calls made with the ctx passed to fn
// take part in the transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	// serviceClient bypasses row level security for cross-user reads
	// (attendee lists, notification fan-out). Nil falls back to supabaseClient.
	serviceClient *supabase.Client
	url           string
	key           string
}

func SupabaseNewRepo(supabaseClient, serviceClient *supabase.Client, url, key string) *SupabaseRepo {
	if serviceClient == nil {
		serviceClient = supabaseClient
	}
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		serviceClient:  serviceClient,
		url:            url,
		key:            key,
	}
}

// GetAuthenticatedClient returns a Supabase client with the given access token
func (su *SupabaseRepo) GetAuthenticatedClient(accessToken string) (*supabase.Client, error) {
	if su.url == "" || su.key == "" {
		return su.supabaseClient, nil
	}

	options := &supabase.ClientOptions{
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
		},
	}

	return supabase.NewClient(su.url, su.key, options)
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultDbName
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// WithTransaction runs fn inside a multi-document transaction. The driver
// retries fn on transient errors such as write conflicts, so fn must be
// safe to re-run.
func (mdb *MongodbRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mdb.mongodbClient == nil {
		return fmt.Errorf("%w: mongodb client is not initialized", ErrStoreUnavailable)
	}
	session, err := mdb.mongodbClient.StartSession()
	if err != nil {
		return fmt.Errorf("%w: failed to start session: %v", ErrStoreUnavailable, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
