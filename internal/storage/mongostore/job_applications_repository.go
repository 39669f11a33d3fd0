package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/jobapplications"
)

type JobApplicationRepository struct {
	store *Store
}

var _ jobapplications.Repository = (*JobApplicationRepository)(nil)

func (r *JobApplicationRepository) coll() *mongo.Collection {
	return r.store.collection(CollectionJobApplications)
}

func (r *JobApplicationRepository) Create(ctx context.Context, app jobapplications.JobApplication) (_ *jobapplications.JobApplication, err error) {
	ctx, done := r.store.begin(ctx, "job_applications.create")
	defer func() { done(err) }()

	user, err := ids.ToObjectID(app.UserID)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	ts := now()
	doc := jobApplicationDoc{
		ID:          primitive.NewObjectID(),
		User:        user,
		FullName:    app.FullName,
		Email:       app.Email,
		PhoneNumber: app.PhoneNumber,
		Position:    app.Position,
		ResumeURL:   app.ResumeURL,
		CoverLetter: app.CoverLetter,
		Status:      app.Status,
		AdminNote:   app.AdminNote,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if _, err = r.coll().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, jobapplications.ErrAlreadyApplied
		}
		return nil, fmt.Errorf("insert job application: %w", err)
	}
	created := doc.toDomain()
	return &created, nil
}

func (r *JobApplicationRepository) GetByID(ctx context.Context, id string) (_ *jobapplications.JobApplication, err error) {
	ctx, done := r.store.begin(ctx, "job_applications.get")
	defer func() { done(err) }()

	oid, err := jobApplicationOID(id)
	if err != nil {
		return nil, err
	}
	var doc jobApplicationDoc
	if err = r.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, jobapplications.ErrNotFound
		}
		return nil, fmt.Errorf("get job application: %w", err)
	}
	app := doc.toDomain()
	return &app, nil
}

func (r *JobApplicationRepository) Amend(ctx context.Context, id string, amendment jobapplications.Amendment) (_ *jobapplications.JobApplication, err error) {
	ctx, done := r.store.begin(ctx, "job_applications.amend")
	defer func() { done(err) }()

	oid, err := jobApplicationOID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": now()}
	setIf(set, "fullName", amendment.FullName)
	setIf(set, "email", amendment.Email)
	setIf(set, "phoneNumber", amendment.PhoneNumber)
	setIf(set, "position", amendment.Position)
	setIf(set, "resumeUrl", amendment.ResumeURL)
	setIf(set, "coverLetter", amendment.CoverLetter)
	setIf(set, "status", amendment.Status)
	setIf(set, "adminNote", amendment.AdminNote)

	var doc jobApplicationDoc
	err = r.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, jobapplications.ErrNotFound
		}
		return nil, fmt.Errorf("amend job application: %w", err)
	}
	app := doc.toDomain()
	return &app, nil
}

func (r *JobApplicationRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, done := r.store.begin(ctx, "job_applications.delete")
	defer func() { done(err) }()

	oid, err := jobApplicationOID(id)
	if err != nil {
		return err
	}
	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete job application: %w", err)
	}
	if res.DeletedCount == 0 {
		return jobapplications.ErrNotFound
	}
	return nil
}

func (r *JobApplicationRepository) List(ctx context.Context, userID string) (_ []jobapplications.JobApplication, err error) {
	ctx, done := r.store.begin(ctx, "job_applications.list")
	defer func() { done(err) }()

	filter := bson.M{}
	if userID != "" {
		user, err := ids.ToObjectID(userID)
		if err != nil {
			return []jobapplications.JobApplication{}, nil
		}
		filter["user"] = user
	}
	cur, err := r.coll().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list job applications: %w", err)
	}
	var docs []jobApplicationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode job applications: %w", err)
	}
	out := make([]jobapplications.JobApplication, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func jobApplicationOID(id string) (primitive.ObjectID, error) {
	oid, err := ids.ToObjectID(id)
	if err != nil {
		return primitive.NilObjectID, jobapplications.ErrNotFound
	}
	return oid, nil
}
