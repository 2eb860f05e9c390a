package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// ChatRepository defines persistence operations for direct conversations.
type ChatRepository interface {
	// FindByParticipants returns the conversation holding exactly this
	// unordered pair, or nil when no message has ever been exchanged.
	FindByParticipants(ctx context.Context, userA, userB string) (*Chat, error)
	Create(ctx context.Context, c *Chat) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListBetween(ctx context.Context, userA, userB string, limit int) ([]*Message, error)
	// MarkRead sets is_read/read_at on the first transition only and
	// reports whether this call performed the transition.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	ListUnreadFrom(ctx context.Context, receiverID, senderID string) ([]*Message, error)
}

// GroupChatRepository defines persistence operations for group chats.
// The core only mutates groups at creation; membership administration
// is an external collaborator, but member reads gate every fan-out.
type GroupChatRepository interface {
	Create(ctx context.Context, g *GroupChat) error
	GetByID(ctx context.Context, id string) (*GroupChat, error)
	ListForMember(ctx context.Context, userID string) ([]*GroupChat, error)
}

// GroupMessageRepository defines persistence operations for group messages.
type GroupMessageRepository interface {
	Create(ctx context.Context, m *GroupMessage) error
	GetByID(ctx context.Context, id string) (*GroupMessage, error)
	ListForGroup(ctx context.Context, groupID string, limit int) ([]*GroupMessage, error)
	// AddReader appends userID to read_by if absent and reports whether
	// it was added. read_by never shrinks.
	AddReader(ctx context.Context, id, userID string) (bool, error)
	ListUnreadForUser(ctx context.Context, groupID, userID string) ([]*GroupMessage, error)
	CountUnreadForUser(ctx context.Context, groupID, userID string) (int, error)
}

// UnreadRepository defines persistence for per-pair unread counters.
type UnreadRepository interface {
	// Increment bumps the counter for (owner, from), creating it at 1.
	Increment(ctx context.Context, ownerID, fromUserID string) error
	// Reset sets the counter to zero; resetting an absent or already
	// zero counter is a no-op.
	Reset(ctx context.Context, ownerID, fromUserID string) error
	// CountsFor returns all non-zero counters owned by the user keyed
	// by peer id.
	CountsFor(ctx context.Context, ownerID string) (map[string]int, error)
}
