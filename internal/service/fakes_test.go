package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rtchat/internal/domain"
)

// In-memory repositories for service tests. Ids are assigned in the
// durable 24-hex format so the id-format routing behaves as in
// production.

func durableID(n int) string {
	return fmt.Sprintf("%024x", n)
}

type memUserRepo struct {
	users map[string]*domain.User
	next  int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.next++
	u.ID = durableID(r.next)
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) ListActive(ctx context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if u, ok := r.users[id]; ok {
		u.LastSeen = at
	}
	return nil
}

type memChatRepo struct {
	chats map[string]*domain.Chat
	next  int
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{chats: make(map[string]*domain.Chat)}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (r *memChatRepo) FindByParticipants(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	c, ok := r.chats[pairKey(userA, userB)]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (r *memChatRepo) Create(ctx context.Context, c *domain.Chat) error {
	r.next++
	c.ID = durableID(1000 + r.next)
	c.CreatedAt = time.Now()
	r.chats[pairKey(c.Participants[0], c.Participants[1])] = c
	return nil
}

func (r *memChatRepo) Touch(ctx context.Context, id string, at time.Time) error {
	for _, c := range r.chats {
		if c.ID == id {
			c.UpdatedAt = at
		}
	}
	return nil
}

type memMessageRepo struct {
	messages map[string]*domain.Message
	order    []string
	next     int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[string]*domain.Message)}
}

func (r *memMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	r.next++
	m.ID = durableID(2000 + r.next)
	m.CreatedAt = time.Now()
	r.messages[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (r *memMessageRepo) ListBetween(ctx context.Context, userA, userB string, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, id := range r.order {
		m := r.messages[id]
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	m, ok := r.messages[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if m.IsRead {
		return false, nil
	}
	m.IsRead = true
	m.ReadAt = &at
	return true, nil
}

func (r *memMessageRepo) ListUnreadFrom(ctx context.Context, receiverID, senderID string) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, id := range r.order {
		m := r.messages[id]
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			out = append(out, m)
		}
	}
	return out, nil
}

type memGroupRepo struct {
	groups map[string]*domain.GroupChat
	next   int
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[string]*domain.GroupChat)}
}

func (r *memGroupRepo) Create(ctx context.Context, g *domain.GroupChat) error {
	r.next++
	g.ID = durableID(3000 + r.next)
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	r.groups[g.ID] = g
	return nil
}

func (r *memGroupRepo) GetByID(ctx context.Context, id string) (*domain.GroupChat, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (r *memGroupRepo) ListForMember(ctx context.Context, userID string) ([]*domain.GroupChat, error) {
	var out []*domain.GroupChat
	for _, g := range r.groups {
		if g.IsMember(userID) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memGroupMessageRepo struct {
	messages map[string]*domain.GroupMessage
	order    []string
	next     int
}

func newMemGroupMessageRepo() *memGroupMessageRepo {
	return &memGroupMessageRepo{messages: make(map[string]*domain.GroupMessage)}
}

func (r *memGroupMessageRepo) Create(ctx context.Context, m *domain.GroupMessage) error {
	r.next++
	m.ID = durableID(4000 + r.next)
	m.CreatedAt = time.Now()
	r.messages[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *memGroupMessageRepo) GetByID(ctx context.Context, id string) (*domain.GroupMessage, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (r *memGroupMessageRepo) ListForGroup(ctx context.Context, groupID string, limit int) ([]*domain.GroupMessage, error) {
	var out []*domain.GroupMessage
	for _, id := range r.order {
		m := r.messages[id]
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memGroupMessageRepo) AddReader(ctx context.Context, id, userID string) (bool, error) {
	m, ok := r.messages[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if m.ReadByUser(userID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true, nil
}

func (r *memGroupMessageRepo) ListUnreadForUser(ctx context.Context, groupID, userID string) ([]*domain.GroupMessage, error) {
	var out []*domain.GroupMessage
	for _, id := range r.order {
		m := r.messages[id]
		if m.GroupID == groupID && m.SenderID != userID && !m.ReadByUser(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memGroupMessageRepo) CountUnreadForUser(ctx context.Context, groupID, userID string) (int, error) {
	msgs, err := r.ListUnreadForUser(ctx, groupID, userID)
	return len(msgs), err
}

type memUnreadRepo struct {
	counts map[string]int
}

func newMemUnreadRepo() *memUnreadRepo {
	return &memUnreadRepo{counts: make(map[string]int)}
}

func unreadKey(ownerID, fromUserID string) string {
	return ownerID + "|" + fromUserID
}

func (r *memUnreadRepo) Increment(ctx context.Context, ownerID, fromUserID string) error {
	r.counts[unreadKey(ownerID, fromUserID)]++
	return nil
}

func (r *memUnreadRepo) Reset(ctx context.Context, ownerID, fromUserID string) error {
	r.counts[unreadKey(ownerID, fromUserID)] = 0
	return nil
}

func (r *memUnreadRepo) CountsFor(ctx context.Context, ownerID string) (map[string]int, error) {
	out := make(map[string]int)
	for key, n := range r.counts {
		if n == 0 {
			continue
		}
		if len(key) > len(ownerID) && key[:len(ownerID)] == ownerID && key[len(ownerID)] == '|' {
			out[key[len(ownerID)+1:]] = n
		}
	}
	return out, nil
}
