package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/users"
)

type UserRepository struct {
	store *Store
}

var _ users.Repository = (*UserRepository)(nil)

func (r *UserRepository) coll() *mongo.Collection {
	return r.store.collection(CollectionUsers)
}

func (r *UserRepository) tokens() *mongo.Collection {
	return r.store.collection(CollectionUserTokens)
}

func (r *UserRepository) Create(ctx context.Context, user users.User) (_ *users.User, err error) {
	ctx, done := r.store.begin(ctx, "users.create")
	defer func() { done(err) }()

	ts := now()
	doc := userDoc{
		ID:             primitive.NewObjectID(),
		Name:           user.Name,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		Role:           string(auth.NormalizeRole(string(user.Role))),
		EmailConfirmed: user.EmailConfirmed,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if _, err = r.coll().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	created := doc.toDomain()
	return &created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (_ *users.User, err error) {
	ctx, done := r.store.begin(ctx, "users.get")
	defer func() { done(err) }()

	oid, err := userOID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	ctx, done := r.store.begin(ctx, "users.get_by_email")
	defer func() { done(err) }()

	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*users.User, error) {
	var doc userDoc
	if err := r.coll().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user := doc.toDomain()
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) (_ []users.User, err error) {
	ctx, done := r.store.begin(ctx, "users.list")
	defer func() { done(err) }()

	cur, err := r.coll().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	out := make([]users.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, update users.Update) (_ *users.User, err error) {
	ctx, done := r.store.begin(ctx, "users.update")
	defer func() { done(err) }()

	oid, err := userOID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": now()}
	setIf(set, "name", update.Name)
	setIf(set, "email", update.Email)
	if update.Role != nil {
		set["role"] = string(auth.NormalizeRole(*update.Role))
	}

	var doc userDoc
	err = r.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, users.ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	user := doc.toDomain()
	return &user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, done := r.store.begin(ctx, "users.delete")
	defer func() { done(err) }()

	oid, err := userOID(id)
	if err != nil {
		return err
	}
	res, err := r.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return users.ErrUserNotFound
	}
	if _, err := r.tokens().DeleteMany(ctx, bson.M{"user": oid}); err != nil {
		r.store.logger.Warn().Err(err).Str("user_id", id).Msg("delete tokens of removed user")
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) (err error) {
	ctx, done := r.store.begin(ctx, "users.set_password")
	defer func() { done(err) }()

	return r.setFields(ctx, id, bson.M{"passwordHash": passwordHash})
}

func (r *UserRepository) MarkEmailConfirmed(ctx context.Context, id string) (err error) {
	ctx, done := r.store.begin(ctx, "users.confirm_email")
	defer func() { done(err) }()

	return r.setFields(ctx, id, bson.M{"emailConfirmed": true})
}

func (r *UserRepository) setFields(ctx context.Context, id string, set bson.M) error {
	oid, err := userOID(id)
	if err != nil {
		return err
	}
	set["updatedAt"] = now()
	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SaveToken(ctx context.Context, token users.Token) (err error) {
	ctx, done := r.store.begin(ctx, "users.save_token")
	defer func() { done(err) }()

	user, err := userOID(token.UserID)
	if err != nil {
		return err
	}
	doc := tokenDoc{
		Hash:      token.Hash,
		User:      user,
		Purpose:   string(token.Purpose),
		ExpiresAt: token.ExpiresAt.UTC(),
	}
	if _, err = r.tokens().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ConsumeToken removes the token in the same operation that reads it, so a
// link can only ever be redeemed once.
func (r *UserRepository) ConsumeToken(ctx context.Context, hash string, purpose users.TokenPurpose, at time.Time) (_ *users.Token, err error) {
	ctx, done := r.store.begin(ctx, "users.consume_token")
	defer func() { done(err) }()

	var doc tokenDoc
	err = r.tokens().FindOneAndDelete(ctx, bson.M{
		"tokenHash": hash,
		"purpose":   string(purpose),
		"expiresAt": bson.M{"$gt": at.UTC()},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, users.ErrInvalidToken
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return &users.Token{
		Hash:      doc.Hash,
		UserID:    doc.User.Hex(),
		Purpose:   users.TokenPurpose(doc.Purpose),
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func userOID(id string) (primitive.ObjectID, error) {
	oid, err := ids.ToObjectID(id)
	if err != nil {
		return primitive.NilObjectID, users.ErrUserNotFound
	}
	return oid, nil
}
