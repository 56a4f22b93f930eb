package models

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EventsRepo interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	UpdateEvent(ctx context.Context, id string, update EventUpdate) (*Event, error)
	// DeleteEvent removes only the event document. Callers cascade to the
	// attendance ledger inside a transaction.
	DeleteEvent(ctx context.Context, id string) error
	SetAttendeeCount(ctx context.Context, id string, count int) error
	ListEvents(ctx context.Context) ([]*Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string) ([]*Event, error)
	ListEventsByIDs(ctx context.Context, ids []string) ([]*Event, error)
	SearchEvents(ctx context.Context, keyword string) ([]*Event, error)
}

type eventDB struct {
	ObjectID      primitive.ObjectID `bson:"_id,omitempty"`
	ID            string             `bson:"id"`
	Name          string             `bson:"name"`
	Venue         string             `bson:"venue"`
	StartsAt      time.Time          `bson:"starts_at"`
	EndsAt        time.Time          `bson:"ends_at"`
	Capacity      int                `bson:"capacity"`
	Description   string             `bson:"description"`
	Audience      string             `bson:"audience"`
	OwnerID       string             `bson:"owner_id"`
	ImageURL      string             `bson:"image_url,omitempty"`
	ImagePublicID string             `bson:"image_public_id,omitempty"`
	AttendeeCount int                `bson:"attendee_count"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func toEventDB(e *Event) *eventDB {
	return &eventDB{
		ID:            e.ID,
		Name:          e.Name,
		Venue:         e.Venue,
		StartsAt:      e.StartsAt.UTC(),
		EndsAt:        e.EndsAt.UTC(),
		Capacity:      e.Capacity,
		Description:   e.Description,
		Audience:      string(e.Audience),
		OwnerID:       e.OwnerID,
		ImageURL:      e.ImageURL,
		ImagePublicID: e.ImagePublicID,
		AttendeeCount: e.AttendeeCount,
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
}

// fromEventDB is the single decode point for stored events. Documents written
// before the audience field existed read as unrestricted.
func fromEventDB(d *eventDB) *Event {
	audience := Audience(d.Audience)
	if audience == "" {
		audience = AudienceAll
	}
	return &Event{
		ID:            d.ID,
		Name:          d.Name,
		Venue:         d.Venue,
		StartsAt:      d.StartsAt,
		EndsAt:        d.EndsAt,
		Capacity:      d.Capacity,
		Description:   d.Description,
		Audience:      audience,
		OwnerID:       d.OwnerID,
		ImageURL:      d.ImageURL,
		ImagePublicID: d.ImagePublicID,
		AttendeeCount: d.AttendeeCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func (mdb *MongodbRepo) CreateEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("nil event passed to create method")
	}
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return storeErr("get events collection", err)
	}
	doc := toEventDB(event)
	doc.ObjectID = primitive.NewObjectID()
	if _, err := col.InsertOne(ctx, doc); err != nil {
		return storeErr("insert event", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetEvent(ctx context.Context, id string) (*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, storeErr("get events collection", err)
	}
	var doc eventDB
	err = col.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, storeErr("find event", err)
	}
	return fromEventDB(&doc), nil
}

func (mdb *MongodbRepo) UpdateEvent(ctx context.Context, id string, update EventUpdate) (*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, storeErr("get events collection", err)
	}

	set := bson.D{}
	if update.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *update.Name})
	}
	if update.Venue != nil {
		set = append(set, bson.E{Key: "venue", Value: *update.Venue})
	}
	if update.StartsAt != nil {
		set = append(set, bson.E{Key: "starts_at", Value: update.StartsAt.UTC()})
	}
	if update.EndsAt != nil {
		set = append(set, bson.E{Key: "ends_at", Value: update.EndsAt.UTC()})
	}
	if update.Capacity != nil {
		set = append(set, bson.E{Key: "capacity", Value: *update.Capacity})
	}
	if update.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *update.Description})
	}
	if update.Audience != nil {
		set = append(set, bson.E{Key: "audience", Value: string(*update.Audience)})
	}
	if update.ImageURL != nil {
		set = append(set, bson.E{Key: "image_url", Value: *update.ImageURL})
	}
	if update.ImagePublicID != nil {
		set = append(set, bson.E{Key: "image_public_id", Value: *update.ImagePublicID})
	}
	set = append(set, bson.E{Key: "updated_at", Value: time.Now().UTC()})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc eventDB
	err = col.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, storeErr("update event", err)
	}
	return fromEventDB(&doc), nil
}

func (mdb *MongodbRepo) DeleteEvent(ctx context.Context, id string) error {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return storeErr("get events collection", err)
	}
	res, err := col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return storeErr("delete event", err)
	}
	if res.DeletedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (mdb *MongodbRepo) SetAttendeeCount(ctx context.Context, id string, count int) error {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return storeErr("get events collection", err)
	}
	res, err := col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"attendee_count": count}})
	if err != nil {
		return storeErr("set attendee count", err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (mdb *MongodbRepo) ListEvents(ctx context.Context) ([]*Event, error) {
	return mdb.findEvents(ctx, bson.M{})
}

func (mdb *MongodbRepo) ListEventsByOwner(ctx context.Context, ownerID string) ([]*Event, error) {
	return mdb.findEvents(ctx, bson.M{"owner_id": ownerID})
}

func (mdb *MongodbRepo) ListEventsByIDs(ctx context.Context, ids []string) ([]*Event, error) {
	if len(ids) == 0 {
		return []*Event{}, nil
	}
	return mdb.findEvents(ctx, bson.M{"id": bson.M{"$in": ids}})
}

// SearchEvents matches keyword as a literal, case-insensitive substring of
// name, venue or description.
func (mdb *MongodbRepo) SearchEvents(ctx context.Context, keyword string) ([]*Event, error) {
	kw := strings.TrimSpace(keyword)
	if kw == "" {
		return mdb.ListEvents(ctx)
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(kw), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"venue": pattern},
		bson.M{"description": pattern},
	}}
	return mdb.findEvents(ctx, filter)
}

func (mdb *MongodbRepo) findEvents(ctx context.Context, filter bson.M) ([]*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, storeErr("get events collection", err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find events", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDB
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode events", err)
	}
	events := make([]*Event, 0, len(docs))
	for i := range docs {
		events = append(events, fromEventDB(&docs[i]))
	}
	return events, nil
}
