package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rtchat/internal/domain"
)

// UnreadRepo persists per-pair unread counters as one document per
// (user_id, from_user_id), maintained with upserts so increments from
// concurrent deliveries never race a missing document.
type UnreadRepo struct {
	coll *mongo.Collection
}

func NewUnreadRepo(db *mongo.Database) *UnreadRepo {
	return &UnreadRepo{coll: db.Collection(collUnreads)}
}

var _ domain.UnreadRepository = (*UnreadRepo)(nil)

type unreadDoc struct {
	OwnerID   string    `bson:"user_id"`
	PeerID    string    `bson:"from_user_id"`
	Count     int       `bson:"count"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (r *UnreadRepo) Increment(ctx context.Context, ownerID, fromUserID string) error {
	filter := bson.M{"user_id": ownerID, "from_user_id": fromUserID}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	return nil
}

func (r *UnreadRepo) Reset(ctx context.Context, ownerID, fromUserID string) error {
	filter := bson.M{"user_id": ownerID, "from_user_id": fromUserID}
	update := bson.M{
		"$set": bson.M{"count": 0, "updated_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

func (r *UnreadRepo) CountsFor(ctx context.Context, ownerID string) (map[string]int, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": ownerID, "count": bson.M{"$gt": 0}})
	if err != nil {
		return nil, fmt.Errorf("list unread counters: %w", err)
	}
	defer cur.Close(ctx)

	res := make(map[string]int)
	for cur.Next(ctx) {
		var doc unreadDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode unread counter: %w", err)
		}
		res[doc.PeerID] = doc.Count
	}
	return res, cur.Err()
}
