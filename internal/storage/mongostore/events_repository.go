package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/ids"
)

type EventRepository struct {
	store *Store
}

var _ events.Repository = (*EventRepository)(nil)

func (r *EventRepository) coll() *mongo.Collection {
	return r.store.collection(CollectionEvents)
}

func (r *EventRepository) Create(ctx context.Context, fields events.Fields) (_ *events.Event, err error) {
	ctx, done := r.store.begin(ctx, "events.create")
	defer func() { done(err) }()

	ts := now()
	doc := eventFields(fields)
	oid := primitive.NewObjectID()
	doc["_id"] = oid
	doc["createdAt"] = ts
	doc["updatedAt"] = ts

	if _, err = r.coll().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.getByOID(ctx, oid)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (_ *events.Event, err error) {
	ctx, done := r.store.begin(ctx, "events.get")
	defer func() { done(err) }()

	oid, err := eventOID(id)
	if err != nil {
		return nil, err
	}
	return r.getByOID(ctx, oid)
}

func (r *EventRepository) getByOID(ctx context.Context, oid primitive.ObjectID) (*events.Event, error) {
	var doc eventDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	event := doc.toDomain()
	return &event, nil
}

func (r *EventRepository) Exists(ctx context.Context, id string) (_ bool, err error) {
	ctx, done := r.store.begin(ctx, "events.exists")
	defer func() { done(err) }()

	oid, err := eventOID(id)
	if err != nil {
		return false, err
	}
	n, err := r.coll().CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count event: %w", err)
	}
	return n > 0, nil
}

func (r *EventRepository) Replace(ctx context.Context, id string, fields events.Fields) (_ *events.Event, err error) {
	ctx, done := r.store.begin(ctx, "events.replace")
	defer func() { done(err) }()

	oid, err := eventOID(id)
	if err != nil {
		return nil, err
	}
	set := eventFields(fields)
	set["updatedAt"] = now()

	var doc eventDoc
	err = r.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("replace event: %w", err)
	}
	event := doc.toDomain()
	return &event, nil
}

func (r *EventRepository) DeleteCascade(ctx context.Context, id string) (_ events.CascadeResult, err error) {
	ctx, done := r.store.begin(ctx, "events.delete_cascade")
	defer func() { done(err) }()

	oid, err := eventOID(id)
	if err != nil {
		return events.CascadeResult{}, err
	}
	if r.store.transactions {
		return r.deleteInTransaction(ctx, oid)
	}
	return r.deleteJournaled(ctx, oid)
}

func (r *EventRepository) deleteInTransaction(ctx context.Context, oid primitive.ObjectID) (events.CascadeResult, error) {
	session, err := r.store.client.StartSession()
	if err != nil {
		return events.CascadeResult{}, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	out, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return deleteEventAndApplications(sc, r.store, oid)
	})
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return events.CascadeResult{}, events.ErrNotFound
		}
		return events.CascadeResult{}, fmt.Errorf("delete event transaction: %w", err)
	}
	return out.(events.CascadeResult), nil
}

// deleteJournaled records the cascade before touching either collection so
// a failure between the two deletes leaves a pending entry for reconcile.
func (r *EventRepository) deleteJournaled(ctx context.Context, oid primitive.ObjectID) (events.CascadeResult, error) {
	journal := newCascadeJournal(r.store)
	entry, err := journal.open(ctx, oid)
	if err != nil {
		return events.CascadeResult{}, err
	}

	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		journal.close(ctx, entry)
		return events.CascadeResult{}, fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		journal.close(ctx, entry)
		return events.CascadeResult{}, events.ErrNotFound
	}

	result := events.CascadeResult{EventID: oid.Hex()}
	removed, err := r.store.collection(CollectionEventApplications).DeleteMany(ctx, bson.M{"event": oid})
	if err != nil {
		r.store.logger.Error().Err(err).Str("event_id", oid.Hex()).Msg("application cascade failed; left pending")
		return result, fmt.Errorf("%w: %v", events.ErrCascadeIncomplete, err)
	}
	result.ApplicationsRemoved = removed.DeletedCount
	journal.close(ctx, entry)
	return result, nil
}

func deleteEventAndApplications(ctx context.Context, s *Store, oid primitive.ObjectID) (events.CascadeResult, error) {
	res, err := s.collection(CollectionEvents).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return events.CascadeResult{}, err
	}
	if res.DeletedCount == 0 {
		return events.CascadeResult{}, events.ErrNotFound
	}
	removed, err := s.collection(CollectionEventApplications).DeleteMany(ctx, bson.M{"event": oid})
	if err != nil {
		return events.CascadeResult{}, err
	}
	return events.CascadeResult{EventID: oid.Hex(), ApplicationsRemoved: removed.DeletedCount}, nil
}

func (r *EventRepository) Count(ctx context.Context) (_ int64, err error) {
	ctx, done := r.store.begin(ctx, "events.count")
	defer func() { done(err) }()

	n, err := r.coll().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (r *EventRepository) ListPage(ctx context.Context, offset, limit int64) (_ []events.Event, err error) {
	ctx, done := r.store.begin(ctx, "events.list_page")
	defer func() { done(err) }()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)
	cur, err := r.coll().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var docs []eventDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]events.Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *EventRepository) ListWithApplicantCounts(ctx context.Context) (_ []events.WithApplicants, err error) {
	ctx, done := r.store.begin(ctx, "events.list_with_counts")
	defer func() { done(err) }()

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         CollectionEventApplications,
			"localField":   "_id",
			"foreignField": "event",
			"as":           "applicants",
		}}},
		{{Key: "$addFields", Value: bson.M{"numberOfApplicants": bson.M{"$size": "$applicants"}}}},
		{{Key: "$project", Value: bson.M{"applicants": 0}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}
	var docs []eventWithCountDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]events.WithApplicants, 0, len(docs))
	for _, d := range docs {
		out = append(out, events.WithApplicants{Event: d.eventDoc.toDomain(), NumberOfApplicants: d.NumberOfApplicants})
	}
	return out, nil
}

func (r *EventRepository) ReconcileCascades(ctx context.Context) (_ int, err error) {
	ctx, done := r.store.begin(ctx, "events.reconcile")
	defer func() { done(err) }()

	return newCascadeJournal(r.store).drain(ctx)
}

// eventOID maps a malformed id to ErrNotFound: no event can have it.
func eventOID(id string) (primitive.ObjectID, error) {
	oid, err := ids.ToObjectID(id)
	if err != nil {
		return primitive.NilObjectID, events.ErrNotFound
	}
	return oid, nil
}
