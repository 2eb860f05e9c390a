package domain

import "time"

// User represents an application user. IDs are 24-char hex ObjectIDs
// rendered as strings; the store layer owns the conversion.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Email          *string   `json:"email,omitempty"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
}

// Chat is a direct conversation: the unordered pair of participants,
// created lazily on first message.
type Chat struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single direct message. A message submitted by a client
// carries a provisional temp id until the store assigns the durable ID.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Body       string     `json:"body"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GroupChat is a named group conversation. Invariant: creator is in
// admins, and admins is a subset of members.
type GroupChat struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsMember reports whether the user belongs to the group.
func (g *GroupChat) IsMember(userID string) bool {
	return containsID(g.Members, userID)
}

// IsAdmin reports whether the user is a group admin.
func (g *GroupChat) IsAdmin(userID string) bool {
	return containsID(g.Admins, userID)
}

// GroupMessage is a message in a group conversation. ReadBy always
// contains the sender and only ever grows.
type GroupMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	GroupID   string    `json:"group_id"`
	Body      string    `json:"body"`
	ReadBy    []string  `json:"read_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadByUser reports whether the user has read the message.
func (m *GroupMessage) ReadByUser(userID string) bool {
	return containsID(m.ReadBy, userID)
}

// ReadProgress returns how many of the given current members, excluding
// the sender, have read the message, along with the denominator.
func (m *GroupMessage) ReadProgress(members []string) (read, total int) {
	for _, id := range members {
		if id == m.SenderID {
			continue
		}
		total++
		if m.ReadByUser(id) {
			read++
		}
	}
	return read, total
}

// FullyRead reports whether every current member other than the sender
// has read the message.
func (m *GroupMessage) FullyRead(members []string) bool {
	read, total := m.ReadProgress(members)
	return read == total
}

// UnreadCounter is the persisted per-pair unread count for direct
// messages: how many messages from PeerID the owner has not read yet.
type UnreadCounter struct {
	OwnerID   string    `json:"user_id"`
	PeerID    string    `json:"from_user_id"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
