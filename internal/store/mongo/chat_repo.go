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

type ChatRepo struct {
	coll *mongo.Collection
}

func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{coll: db.Collection(collChats)}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

type chatDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Participants []string           `bson:"participants"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d *chatDoc) toDomain() *domain.Chat {
	return &domain.Chat{
		ID:           d.ID.Hex(),
		Participants: d.Participants,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (r *ChatRepo) FindByParticipants(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	var doc chatDoc
	filter := bson.M{"participants": bson.M{"$all": bson.A{userA, userB}}}
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ChatRepo) Create(ctx context.Context, c *domain.Chat) error {
	now := time.Now().UTC()
	doc := chatDoc{
		Participants: c.Participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID).Hex()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *ChatRepo) Touch(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidID
	}
	_, err = r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"updated_at": at.UTC()}})
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}
