package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"rtchat/internal/domain"
)

type GroupChatRepo struct {
	coll *mongo.Collection
}

func NewGroupChatRepo(db *mongo.Database) *GroupChatRepo {
	return &GroupChatRepo{coll: db.Collection(collGroupChats)}
}

var _ domain.GroupChatRepository = (*GroupChatRepo)(nil)

type groupChatDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Members     []string           `bson:"members"`
	Admins      []string           `bson:"admins"`
	CreatorID   string             `bson:"creator_id"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *groupChatDoc) toDomain() *domain.GroupChat {
	return &domain.GroupChat{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Members:     d.Members,
		Admins:      d.Admins,
		CreatorID:   d.CreatorID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (r *GroupChatRepo) Create(ctx context.Context, g *domain.GroupChat) error {
	now := time.Now().UTC()
	doc := groupChatDoc{
		Name:        g.Name,
		Description: g.Description,
		Members:     g.Members,
		Admins:      g.Admins,
		CreatorID:   g.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert group chat: %w", err)
	}
	g.ID = res.InsertedID.(primitive.ObjectID).Hex()
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

func (r *GroupChatRepo) GetByID(ctx context.Context, id string) (*domain.GroupChat, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	var doc groupChatDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find group chat: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *GroupChatRepo) ListForMember(ctx context.Context, userID string) ([]*domain.GroupChat, error) {
	cur, err := r.coll.Find(ctx, bson.M{"members": userID})
	if err != nil {
		return nil, fmt.Errorf("list group chats: %w", err)
	}
	defer cur.Close(ctx)

	var res []*domain.GroupChat
	for cur.Next(ctx) {
		var doc groupChatDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode group chat: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cur.Err()
}
