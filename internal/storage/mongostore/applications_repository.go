package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/ids"
)

type ApplicationRepository struct {
	store *Store
}

var _ applications.Repository = (*ApplicationRepository)(nil)

func (r *ApplicationRepository) coll() *mongo.Collection {
	return r.store.collection(CollectionEventApplications)
}

func (r *ApplicationRepository) Create(ctx context.Context, app applications.Application) (_ *applications.Application, err error) {
	ctx, done := r.store.begin(ctx, "applications.create")
	defer func() { done(err) }()

	user, err := ids.ToObjectID(app.UserID)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	event, err := ids.ToObjectID(app.EventID)
	if err != nil {
		return nil, applications.ErrEventNotFound
	}
	ts := now()
	doc := applicationDoc{
		ID:          primitive.NewObjectID(),
		User:        user,
		Event:       event,
		Name:        app.Name,
		PhoneNumber: app.PhoneNumber,
		Email:       app.Email,
		Message:     app.Message,
		Status:      app.Status,
		AdminNote:   app.AdminNote,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if _, err = r.coll().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, applications.ErrAlreadyApplied
		}
		return nil, fmt.Errorf("insert application: %w", err)
	}
	created := doc.toDomain()
	return &created, nil
}

func (r *ApplicationRepository) GetJoined(ctx context.Context, id string, mode applications.JoinMode) (_ *applications.Joined, err error) {
	ctx, done := r.store.begin(ctx, "applications.get_joined")
	defer func() { done(err) }()

	oid, err := applicationOID(id)
	if err != nil {
		return nil, err
	}
	joined, err := r.aggregateJoined(ctx, bson.M{"_id": oid}, mode)
	if err != nil {
		return nil, err
	}
	if len(joined) == 0 {
		return nil, applications.ErrNotFound
	}
	return &joined[0], nil
}

func (r *ApplicationRepository) ListJoined(ctx context.Context, filter applications.Filter, mode applications.JoinMode) (_ []applications.Joined, err error) {
	ctx, done := r.store.begin(ctx, "applications.list_joined")
	defer func() { done(err) }()

	match := bson.M{}
	if filter.UserID != "" {
		user, err := ids.ToObjectID(filter.UserID)
		if err != nil {
			return []applications.Joined{}, nil
		}
		match["user"] = user
	}
	return r.aggregateJoined(ctx, match, mode)
}

// aggregateJoined attaches the parent event under eventDoc. Applications
// whose event is gone keep a nil event instead of being dropped.
func (r *ApplicationRepository) aggregateJoined(ctx context.Context, match bson.M, mode applications.JoinMode) ([]applications.Joined, error) {
	eventPipeline := bson.A{
		bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$eventId"}}}},
	}
	if mode == applications.JoinIntroduction {
		eventPipeline = append(eventPipeline, bson.M{"$project": bson.M{"productIntroduction": 1}})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
		{{Key: "$lookup", Value: bson.M{
			"from":     CollectionEvents,
			"let":      bson.M{"eventId": "$event"},
			"pipeline": eventPipeline,
			"as":       "eventDoc",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$eventDoc", "preserveNullAndEmptyArrays": true}}},
	}

	cur, err := r.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate applications: %w", err)
	}
	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	out := make([]applications.Joined, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toJoined())
	}
	return out, nil
}

func (r *ApplicationRepository) Amend(ctx context.Context, id string, amendment applications.Amendment) (_ *applications.Application, err error) {
	ctx, done := r.store.begin(ctx, "applications.amend")
	defer func() { done(err) }()

	oid, err := applicationOID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": now()}
	setIf(set, "name", amendment.Name)
	setIf(set, "phoneNumber", amendment.PhoneNumber)
	setIf(set, "email", amendment.Email)
	setIf(set, "message", amendment.Message)
	setIf(set, "status", amendment.Status)
	setIf(set, "adminNote", amendment.AdminNote)

	var doc applicationDoc
	err = r.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, applications.ErrNotFound
		}
		return nil, fmt.Errorf("amend application: %w", err)
	}
	app := doc.toDomain()
	return &app, nil
}

func (r *ApplicationRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, done := r.store.begin(ctx, "applications.delete")
	defer func() { done(err) }()

	oid, err := applicationOID(id)
	if err != nil {
		return err
	}
	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if res.DeletedCount == 0 {
		return applications.ErrNotFound
	}
	return nil
}

func (r *ApplicationRepository) ListByEvent(ctx context.Context, eventID string) (_ []applications.Application, err error) {
	ctx, done := r.store.begin(ctx, "applications.list_by_event")
	defer func() { done(err) }()

	event, err := ids.ToObjectID(eventID)
	if err != nil {
		return nil, applications.ErrEventNotFound
	}
	cur, err := r.coll().Find(ctx, bson.M{"event": event}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	var docs []applicationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	out := make([]applications.Application, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ApplicationRepository) GetForEvent(ctx context.Context, eventID, id string) (_ *applications.Application, err error) {
	ctx, done := r.store.begin(ctx, "applications.get_for_event")
	defer func() { done(err) }()

	event, err := ids.ToObjectID(eventID)
	if err != nil {
		return nil, applications.ErrEventNotFound
	}
	oid, err := applicationOID(id)
	if err != nil {
		return nil, err
	}
	var doc applicationDoc
	if err = r.coll().FindOne(ctx, bson.M{"_id": oid, "event": event}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, applications.ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	app := doc.toDomain()
	return &app, nil
}

func applicationOID(id string) (primitive.ObjectID, error) {
	oid, err := ids.ToObjectID(id)
	if err != nil {
		return primitive.NilObjectID, applications.ErrNotFound
	}
	return oid, nil
}

func setIf(set bson.M, key string, value *string) {
	if value != nil {
		set[key] = *value
	}
}
