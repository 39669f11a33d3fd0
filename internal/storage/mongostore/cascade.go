package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cascadeJournal tracks event deletions whose application cleanup has not
// been confirmed. It is only used when the deployment runs without
// multi-document transactions.
type cascadeJournal struct {
	store *Store
}

func newCascadeJournal(s *Store) cascadeJournal {
	return cascadeJournal{store: s}
}

func (j cascadeJournal) open(ctx context.Context, event primitive.ObjectID) (primitive.ObjectID, error) {
	entry := cascadeDoc{ID: primitive.NewObjectID(), Event: event, CreatedAt: now()}
	if _, err := j.store.collection(CollectionCascades).InsertOne(ctx, entry); err != nil {
		return primitive.NilObjectID, fmt.Errorf("journal cascade: %w", err)
	}
	return entry.ID, nil
}

// close removes an entry. A failure only leaves a redundant entry behind,
// which drain later finishes as a no-op.
func (j cascadeJournal) close(ctx context.Context, entry primitive.ObjectID) {
	if _, err := j.store.collection(CollectionCascades).DeleteOne(ctx, bson.M{"_id": entry}); err != nil {
		j.store.logger.Warn().Err(err).Str("entry", entry.Hex()).Msg("close cascade journal entry")
	}
}

// drain completes every pending cascade, oldest first. It stops at the
// first failure and reports how many entries were finished before it.
func (j cascadeJournal) drain(ctx context.Context) (int, error) {
	cur, err := j.store.collection(CollectionCascades).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("list pending cascades: %w", err)
	}
	var pending []cascadeDoc
	if err := cur.All(ctx, &pending); err != nil {
		return 0, fmt.Errorf("decode pending cascades: %w", err)
	}

	completed := 0
	for _, entry := range pending {
		if _, err := j.store.collection(CollectionEvents).DeleteOne(ctx, bson.M{"_id": entry.Event}); err != nil {
			return completed, fmt.Errorf("reconcile event %s: %w", entry.Event.Hex(), err)
		}
		removed, err := j.store.collection(CollectionEventApplications).DeleteMany(ctx, bson.M{"event": entry.Event})
		if err != nil {
			return completed, fmt.Errorf("reconcile applications of %s: %w", entry.Event.Hex(), err)
		}
		if _, err := j.store.collection(CollectionCascades).DeleteOne(ctx, bson.M{"_id": entry.ID}); err != nil {
			return completed, fmt.Errorf("close cascade %s: %w", entry.ID.Hex(), err)
		}
		j.store.logger.Info().
			Str("event_id", entry.Event.Hex()).
			Int64("applications_removed", removed.DeletedCount).
			Msg("pending cascade reconciled")
		completed++
	}
	return completed, nil
}
