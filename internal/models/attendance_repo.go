package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AttendanceRepo is the attendance ledger. Counts are always derived by query.
type AttendanceRepo interface {
	// AddAttendance returns ErrAlreadyJoined if the (event, user) pair exists.
	AddAttendance(ctx context.Context, a *Attendance) error
	// FindAttendance returns nil, nil when the pair has no row.
	FindAttendance(ctx context.Context, eventID, userID string) (*Attendance, error)
	// RemoveAttendance returns ErrNotJoined if there was nothing to delete.
	RemoveAttendance(ctx context.Context, eventID, userID string) error
	RemoveEventAttendance(ctx context.Context, eventID string) (int64, error)
	CountAttendance(ctx context.Context, eventID string) (int, error)
	CountAttendanceByEvents(ctx context.Context, eventIDs []string) (map[string]int, error)
	ListAttendanceByEvent(ctx context.Context, eventID string) ([]*Attendance, error)
	ListAttendanceByUser(ctx context.Context, userID string) ([]*Attendance, error)
}

type attendanceDB struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	EventID  string             `bson:"event_id"`
	UserID   string             `bson:"user_id"`
	JoinedAt time.Time          `bson:"joined_at"`
}

func fromAttendanceDB(d *attendanceDB) *Attendance {
	return &Attendance{
		ID:       d.ID.Hex(),
		EventID:  d.EventID,
		UserID:   d.UserID,
		JoinedAt: d.JoinedAt,
	}
}

func (mdb *MongodbRepo) AddAttendance(ctx context.Context, a *Attendance) error {
	if a == nil {
		return errors.New("nil attendance passed to add method")
	}
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return storeErr("get attendance collection", err)
	}
	if a.JoinedAt.IsZero() {
		a.JoinedAt = time.Now().UTC()
	}
	doc := attendanceDB{
		ID:       primitive.NewObjectID(),
		EventID:  a.EventID,
		UserID:   a.UserID,
		JoinedAt: a.JoinedAt,
	}
	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyJoined
		}
		return storeErr("insert attendance", err)
	}
	a.ID = doc.ID.Hex()
	return nil
}

func (mdb *MongodbRepo) FindAttendance(ctx context.Context, eventID, userID string) (*Attendance, error) {
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return nil, storeErr("get attendance collection", err)
	}
	var doc attendanceDB
	err = col.FindOne(ctx, bson.M{"event_id": eventID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find attendance", err)
	}
	return fromAttendanceDB(&doc), nil
}

func (mdb *MongodbRepo) RemoveAttendance(ctx context.Context, eventID, userID string) error {
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return storeErr("get attendance collection", err)
	}
	res, err := col.DeleteMany(ctx, bson.M{"event_id": eventID, "user_id": userID})
	if err != nil {
		return storeErr("delete attendance", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotJoined
	}
	return nil
}

func (mdb *MongodbRepo) RemoveEventAttendance(ctx context.Context, eventID string) (int64, error) {
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return 0, storeErr("get attendance collection", err)
	}
	res, err := col.DeleteMany(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, storeErr("delete event attendance", err)
	}
	return res.DeletedCount, nil
}

func (mdb *MongodbRepo) CountAttendance(ctx context.Context, eventID string) (int, error) {
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return 0, storeErr("get attendance collection", err)
	}
	n, err := col.CountDocuments(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, storeErr("count attendance", err)
	}
	return int(n), nil
}

// CountAttendanceByEvents returns live counts for several events in one
// aggregation. Events without rows are reported as 0.
func (mdb *MongodbRepo) CountAttendanceByEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(eventIDs))
	for _, id := range eventIDs {
		counts[id] = 0
	}
	if len(eventIDs) == 0 {
		return counts, nil
	}
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return nil, storeErr("get attendance collection", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": bson.M{"$in": eventIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$event_id",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate attendance counts", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		EventID string `bson:"_id"`
		Count   int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, storeErr("decode attendance counts", err)
	}
	for _, r := range rows {
		counts[r.EventID] = r.Count
	}
	return counts, nil
}

func (mdb *MongodbRepo) ListAttendanceByEvent(ctx context.Context, eventID string) ([]*Attendance, error) {
	return mdb.findAttendance(ctx, bson.M{"event_id": eventID})
}

func (mdb *MongodbRepo) ListAttendanceByUser(ctx context.Context, userID string) ([]*Attendance, error) {
	return mdb.findAttendance(ctx, bson.M{"user_id": userID})
}

func (mdb *MongodbRepo) findAttendance(ctx context.Context, filter bson.M) ([]*Attendance, error) {
	col, err := mdb.GetCollection(AttendanceColName)
	if err != nil {
		return nil, storeErr("get attendance collection", err)
	}
	cursor, err := col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, storeErr("find attendance", err)
	}
	defer cursor.Close(ctx)

	var rows []*Attendance
	for cursor.Next(ctx) {
		var doc attendanceDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, storeErr("decode attendance", err)
		}
		rows = append(rows, fromAttendanceDB(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, storeErr("attendance cursor", err)
	}
	return rows, nil
}
