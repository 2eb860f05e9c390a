// Package chatclient tracks client-side conversation state: which
// messages are displayed, which are pending confirmation, which are
// read, and which typing signals are live. It is transport-agnostic;
// feed it decoded live events and REST results and it tells you what
// to render and what to acknowledge.
package chatclient

import (
	"fmt"
	"sync"
	"time"

	"rtchat/internal/domain"
)

// ConversationState is the lifecycle of one open conversation.
type ConversationState string

const (
	ConversationClosed  ConversationState = "closed"
	ConversationLoading ConversationState = "loading"
	ConversationReady   ConversationState = "ready"
)

// MessageState is the delivery state of a locally sent message.
type MessageState string

const (
	MessagePending   MessageState = "pending"
	MessageConfirmed MessageState = "confirmed"
	MessageFailed    MessageState = "failed"
)

// ViewMessage is one visible element in a conversation view.
type ViewMessage struct {
	ID            string
	ProvisionalID string
	SenderID      string
	Body          string
	State         MessageState
	Read          bool
	CreatedAt     time.Time
}

// Conversation is the per-peer (or per-group) view state.
type Conversation struct {
	ID       string
	Group    bool
	State    ConversationState
	Unread   int
	messages []*ViewMessage
	byID     map[string]*ViewMessage
}

// Messages returns the display list in chronological order.
func (c *Conversation) Messages() []*ViewMessage {
	out := make([]*ViewMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) lookup(id string) *ViewMessage {
	if id == "" {
		return nil
	}
	return c.byID[id]
}

func (c *Conversation) drop(m *ViewMessage) {
	for i, cur := range c.messages {
		if cur == m {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	if m.ID != "" {
		delete(c.byID, m.ID)
	}
	if m.ProvisionalID != "" {
		delete(c.byID, m.ProvisionalID)
	}
}

func (c *Conversation) add(m *ViewMessage) {
	c.messages = append(c.messages, m)
	if m.ID != "" {
		c.byID[m.ID] = m
	}
	if m.ProvisionalID != "" {
		c.byID[m.ProvisionalID] = m
	}
}

// Session is the client-side state machine. At most one conversation
// is active at a time; sends that are still in flight when the user
// switches away resolve into the conversation they belong to.
type Session struct {
	mu            sync.Mutex
	selfID        string
	conversations map[string]*Conversation
	activeID      string
	typing        map[string]map[string]*time.Timer
	typingTimeout time.Duration
}

// NewSession creates a session for the given local user.
// typingTimeout bounds how long a typing indicator stays lit without
// a fresh signal.
func NewSession(selfID string, typingTimeout time.Duration) *Session {
	if typingTimeout <= 0 {
		typingTimeout = 5 * time.Second
	}
	return &Session{
		selfID:        selfID,
		conversations: make(map[string]*Conversation),
		typing:        make(map[string]map[string]*time.Timer),
		typingTimeout: typingTimeout,
	}
}

func (s *Session) conversation(id string, group bool) *Conversation {
	c, ok := s.conversations[id]
	if !ok {
		c = &Conversation{
			ID:    id,
			Group: group,
			State: ConversationClosed,
			byID:  make(map[string]*ViewMessage),
		}
		s.conversations[id] = c
	}
	return c
}

// Open makes the conversation active and moves it to loading. The
// previously active conversation keeps its state; only the displayed
// view changes.
func (s *Session) Open(convID string, group bool) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conversation(convID, group)
	s.activeID = convID
	c.State = ConversationLoading
	return c
}

// HistoryEntry is one persisted message as returned by a history
// fetch.
type HistoryEntry struct {
	ID        string
	SenderID  string
	Body      string
	Read      bool
	CreatedAt time.Time
}

// FinishLoad completes a history fetch: merges the fetched entries
// into the view, deduplicating against anything the live path already
// delivered, and moves the conversation to ready.
func (s *Session) FinishLoad(convID string, history []HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[convID]
	if !ok || c.State != ConversationLoading {
		return fmt.Errorf("conversation %s is not loading", convID)
	}

	for _, h := range history {
		if c.lookup(h.ID) != nil {
			continue
		}
		c.add(&ViewMessage{
			ID:        h.ID,
			SenderID:  h.SenderID,
			Body:      h.Body,
			State:     MessageConfirmed,
			Read:      h.Read,
			CreatedAt: h.CreatedAt,
		})
	}
	c.State = ConversationReady
	return nil
}

// Send records an optimistic local send. The message renders
// immediately under a fresh provisional id; the caller submits the
// body to the server and later settles it with ConfirmSend or
// FailSend.
func (s *Session) Send(convID string, group bool, body string) *ViewMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conversation(convID, group)
	m := &ViewMessage{
		ID:        domain.NewProvisionalID(),
		SenderID:  s.selfID,
		Body:      body,
		State:     MessagePending,
		Read:      true,
		CreatedAt: time.Now(),
	}
	m.ProvisionalID = m.ID
	c.add(m)
	return m
}

// ConfirmSend settles a pending send with its durable id. The rebase
// is idempotent; the message keeps its position in the view. The
// owning conversation is found by provisional id, so a send confirmed
// after the user switched conversations still lands correctly.
func (s *Session) ConfirmSend(provisionalID, durableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebase(provisionalID, durableID, true)
}

// FailSend marks a pending send failed. The message stays visible;
// failed is terminal and the user may resend manually.
func (s *Session) FailSend(provisionalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if m := c.lookup(provisionalID); m != nil {
			if m.State == MessagePending {
				m.State = MessageFailed
			}
			return true
		}
	}
	return false
}

// ApplyIDUpdate applies a provisional-to-durable mapping announced by
// the server. Safe to apply more than once.
func (s *Session) ApplyIDUpdate(provisionalID, durableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebase(provisionalID, durableID, false)
}

func (s *Session) rebase(provisionalID, durableID string, confirm bool) bool {
	if provisionalID == "" || !domain.IsDurableID(durableID) {
		return false
	}
	for _, c := range s.conversations {
		m := c.lookup(provisionalID)
		if m == nil {
			// The durable id may already be in place from an
			// earlier application of the same mapping.
			if prev := c.lookup(durableID); prev != nil {
				if confirm && prev.State == MessagePending {
					prev.State = MessageConfirmed
				}
				return true
			}
			continue
		}
		// A history fetch may have landed the durable copy before this
		// mapping arrived; collapse the two into the live-pushed one.
		if dup := c.lookup(durableID); dup != nil && dup != m {
			c.drop(dup)
			m.Read = m.Read || dup.Read
			if m.State == MessagePending {
				m.State = MessageConfirmed
			}
		}
		m.ID = durableID
		c.byID[durableID] = m
		if confirm && m.State == MessagePending {
			m.State = MessageConfirmed
		}
		return true
	}
	return false
}

// Incoming is a live-pushed message from another participant.
type Incoming struct {
	ID        string
	TempID    string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// AddIncoming records a live-pushed message. Duplicates are detected
// by either the durable or the provisional id. The returned ackIDs
// are durable message ids the caller should acknowledge as read right
// away, which happens only when the conversation is the active view;
// otherwise the unread counter grows.
func (s *Session) AddIncoming(convID string, group bool, in Incoming) (added bool, ackIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conversation(convID, group)
	if c.lookup(in.ID) != nil || c.lookup(in.TempID) != nil {
		return false, nil
	}

	active := s.activeID == convID && c.State == ConversationReady
	m := &ViewMessage{
		ID:            in.ID,
		ProvisionalID: in.TempID,
		SenderID:      in.SenderID,
		Body:          in.Body,
		State:         MessageConfirmed,
		Read:          active,
		CreatedAt:     in.CreatedAt,
	}
	if m.ID == "" {
		m.ID = in.TempID
	}
	c.add(m)

	if active {
		// Provisional-looking ids stay a local-only update; the
		// durable id arrives via messageIdUpdate and gets acked then.
		if domain.IsDurableID(m.ID) {
			return true, []string{m.ID}
		}
		return true, nil
	}
	c.Unread++
	return true, nil
}

// MarkConversationRead resets the unread counter and marks every
// unread message read locally. It returns the durable ids whose read
// state should be acknowledged to the server, batched.
func (s *Session) MarkConversationRead(convID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[convID]
	if !ok {
		return nil
	}
	c.Unread = 0

	var ack []string
	for _, m := range c.messages {
		if m.Read || m.SenderID == s.selfID {
			continue
		}
		m.Read = true
		if domain.IsDurableID(m.ID) {
			ack = append(ack, m.ID)
		}
	}
	return ack
}

// ApplyReadReceipt flips the read indicator on one of our own sent
// messages. No-op when the id is unknown or already read.
func (s *Session) ApplyReadReceipt(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if m := c.lookup(messageID); m != nil {
			if m.Read {
				return false
			}
			m.Read = true
			return true
		}
	}
	return false
}

// SetTyping records a peer's typing signal for a conversation. A true
// signal re-arms the silence timer; a false signal clears immediately.
func (s *Session) SetTyping(convID, fromUserID string, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers, ok := s.typing[convID]
	if !ok {
		if !isTyping {
			return
		}
		peers = make(map[string]*time.Timer)
		s.typing[convID] = peers
	}

	if t, ok := peers[fromUserID]; ok {
		t.Stop()
		delete(peers, fromUserID)
	}
	if !isTyping {
		return
	}
	peers[fromUserID] = time.AfterFunc(s.typingTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if p, ok := s.typing[convID]; ok {
			delete(p, fromUserID)
		}
	})
}

// TypingUsers returns who is currently typing in the conversation.
func (s *Session) TypingUsers(convID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for userID := range s.typing[convID] {
		out = append(out, userID)
	}
	return out
}

// Active returns the active conversation, or nil when none is open.
func (s *Session) Active() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return nil
	}
	return s.conversations[s.activeID]
}

// Get returns a conversation by id, or nil.
func (s *Session) Get(convID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[convID]
}

// UnreadTotal sums unread counters across all conversations.
func (s *Session) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.Unread
	}
	return total
}

// Close stops all typing timers. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, peers := range s.typing {
		for _, t := range peers {
			t.Stop()
		}
	}
	s.typing = make(map[string]map[string]*time.Timer)
}
