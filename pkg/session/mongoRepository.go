package session

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"

	"github.com/pulsefit/checkin-sync/schema"
)

type MongoRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoRepository) coll() *mongo.Collection {
	return m.client.Database(m.database).Collection(m.collection)
}

func (m *MongoRepository) FindOpen(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "FindOpen")
	defer span.End()

	filter := bson.M{"member_id": memberID, "check_out": nil}
	opts := options.FindOne().SetSort(bson.D{{Key: "check_in", Value: -1}})

	var rec schema.SessionRecord
	err := m.coll().FindOne(ctx, filter, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &rec, nil
}

func (m *MongoRepository) Insert(ctx context.Context, rec *schema.SessionRecord) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "Insert")
	defer span.End()

	_, err := m.coll().InsertOne(ctx, rec)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) RefreshCheckIn(ctx context.Context, sessionID string, t time.Time) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "RefreshCheckIn")
	defer span.End()

	_, err := m.coll().UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"check_in": t}})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) SetCheckOut(ctx context.Context, sessionID string, t time.Time, autoClosed bool) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "SetCheckOut")
	defer span.End()

	_, err := m.coll().UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"check_out": t, "auto_closed": autoClosed}})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]schema.SessionRecord, error) {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "FindOverdue")
	defer span.End()

	startTime := time.Now()
	filter := bson.M{"check_out": nil, "check_in": bson.M{"$lt": cutoff}}
	cursor, err := m.coll().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []schema.SessionRecord
	for cursor.Next(ctx) {
		var rec schema.SessionRecord
		if err := cursor.Decode(&rec); err != nil {
			span.RecordError(err)
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "mongodb", "FindOverdue", len(sessions), time.Since(startTime))
	return sessions, nil
}
