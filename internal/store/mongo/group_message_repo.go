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

type GroupMessageRepo struct {
	coll *mongo.Collection
}

func NewGroupMessageRepo(db *mongo.Database) *GroupMessageRepo {
	return &GroupMessageRepo{coll: db.Collection(collGroupMessages)}
}

var _ domain.GroupMessageRepository = (*GroupMessageRepo)(nil)

type groupMessageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	SenderID  string             `bson:"sender_id"`
	GroupID   string             `bson:"group_id"`
	Body      string             `bson:"body"`
	ReadBy    []string           `bson:"read_by"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *groupMessageDoc) toDomain() *domain.GroupMessage {
	return &domain.GroupMessage{
		ID:        d.ID.Hex(),
		SenderID:  d.SenderID,
		GroupID:   d.GroupID,
		Body:      d.Body,
		ReadBy:    d.ReadBy,
		CreatedAt: d.CreatedAt,
	}
}

func (r *GroupMessageRepo) Create(ctx context.Context, m *domain.GroupMessage) error {
	now := time.Now().UTC()
	readBy := m.ReadBy
	if !containsStr(readBy, m.SenderID) {
		// Sender has trivially read their own message.
		readBy = append(readBy, m.SenderID)
	}
	doc := groupMessageDoc{
		SenderID:  m.SenderID,
		GroupID:   m.GroupID,
		Body:      m.Body,
		ReadBy:    readBy,
		CreatedAt: now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert group message: %w", err)
	}
	m.ID = res.InsertedID.(primitive.ObjectID).Hex()
	m.ReadBy = readBy
	m.CreatedAt = now
	return nil
}

func (r *GroupMessageRepo) GetByID(ctx context.Context, id string) (*domain.GroupMessage, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	var doc groupMessageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find group message: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *GroupMessageRepo) ListForGroup(ctx context.Context, groupID string, limit int) ([]*domain.GroupMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	defer cur.Close(ctx)
	return decodeGroupMessages(ctx, cur)
}

// AddReader appends userID to read_by via $addToSet; read_by only grows.
func (r *GroupMessageRepo) AddReader(ctx context.Context, id, userID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrInvalidID
	}
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$addToSet": bson.M{"read_by": userID}})
	if err != nil {
		return false, fmt.Errorf("add reader: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, domain.ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (r *GroupMessageRepo) ListUnreadForUser(ctx context.Context, groupID, userID string) ([]*domain.GroupMessage, error) {
	filter := unreadGroupFilter(groupID, userID)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list unread group messages: %w", err)
	}
	defer cur.Close(ctx)
	return decodeGroupMessages(ctx, cur)
}

func (r *GroupMessageRepo) CountUnreadForUser(ctx context.Context, groupID, userID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, unreadGroupFilter(groupID, userID))
	if err != nil {
		return 0, fmt.Errorf("count unread group messages: %w", err)
	}
	return int(n), nil
}

// unreadGroupFilter matches messages the user has neither sent nor read.
func unreadGroupFilter(groupID, userID string) bson.M {
	return bson.M{
		"group_id":  groupID,
		"read_by":   bson.M{"$ne": userID},
		"sender_id": bson.M{"$ne": userID},
	}
}

func decodeGroupMessages(ctx context.Context, cur *mongo.Cursor) ([]*domain.GroupMessage, error) {
	var res []*domain.GroupMessage
	for cur.Next(ctx) {
		var doc groupMessageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode group message: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cur.Err()
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
