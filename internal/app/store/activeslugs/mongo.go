// internal/app/store/activeslugs/mongo.go
//
// Package activeslugs persists each browser client's active organization
// slug. Personal scope is stored as the absence of an entry.
package activeslugs

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/learnhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding active slugs.
const CollectionName = "active_slugs"

// Mongo stores active slugs in MongoDB, one document per client.
type Mongo struct {
	c   *mongo.Collection
	ttl time.Duration
}

// NewMongo creates a Mongo store. Entries untouched for ttl are removed by a
// TTL index; ttl <= 0 keeps them forever.
func NewMongo(db *mongo.Database, ttl time.Duration) *Mongo {
	return &Mongo{c: db.Collection(CollectionName), ttl: ttl}
}

// EnsureIndexes creates the expiry index when a ttl is set.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(int32(s.ttl / time.Second)).
			SetName("idx_active_slugs_ttl"),
	})
	return err
}

// Load returns the slug stored for clientID.
func (s *Mongo) Load(ctx context.Context, clientID string) (string, bool, error) {
	var rec models.ActiveSlugRecord
	err := s.c.FindOne(ctx, bson.M{"_id": clientID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Slug, true, nil
}

// Save upserts the slug for clientID.
func (s *Mongo) Save(ctx context.Context, clientID, slug string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": clientID},
		bson.M{"$set": bson.M{"slug": slug, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Delete removes the entry for clientID. Deleting a missing entry is not an
// error.
func (s *Mongo) Delete(ctx context.Context, clientID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": clientID})
	return err
}
