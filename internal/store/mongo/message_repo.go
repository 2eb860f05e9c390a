package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rtchat/internal/domain"
)

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(collMessages)}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

type messageDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SenderID   string             `bson:"sender_id"`
	ReceiverID string             `bson:"receiver_id"`
	Body       string             `bson:"body"`
	IsRead     bool               `bson:"is_read"`
	ReadAt     *time.Time         `bson:"read_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (d *messageDoc) toDomain() *domain.Message {
	return &domain.Message{
		ID:         d.ID.Hex(),
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Body:       d.Body,
		IsRead:     d.IsRead,
		ReadAt:     d.ReadAt,
		CreatedAt:  d.CreatedAt,
	}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	now := time.Now().UTC()
	doc := messageDoc{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Body,
		IsRead:     false,
		CreatedAt:  now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = res.InsertedID.(primitive.ObjectID).Hex()
	m.CreatedAt = now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	var doc messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string, limit int) ([]*domain.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var res []*domain.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cur.Err()
}

// MarkRead flips is_read on the first transition only. The filter on
// is_read=false makes repeated calls no-ops, which is what keeps the
// read-receipt path idempotent under concurrent marking.
func (r *MessageRepo) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrInvalidID
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at.UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either already read or absent; let the caller distinguish.
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return false, fmt.Errorf("count message: %w", err)
		}
		if n == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *MessageRepo) ListUnreadFrom(ctx context.Context, receiverID, senderID string) ([]*domain.Message, error) {
	filter := bson.M{"sender_id": senderID, "receiver_id": receiverID, "is_read": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}
	defer cur.Close(ctx)

	var res []*domain.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cur.Err()
}
