package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the event store and attendance ledger rely on.
// It is safe to call on every start.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	events, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	attendance, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	eventIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("event_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("owner_starts_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("starts_at_idx"),
		},
	}

	attendanceIndexes := []mongo.IndexModel{
		// at most one row per (event, user)
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("event_user_unique"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id_idx"),
		},
	}

	if _, err := events.Indexes().CreateMany(ctx, eventIndexes); err != nil {
		return fmt.Errorf("error creating event indexes: %v", err)
	}
	if _, err := attendance.Indexes().CreateMany(ctx, attendanceIndexes); err != nil {
		return fmt.Errorf("error creating attendance indexes: %v", err)
	}
	return nil
}
