package ws

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Conn is the minimal connection surface the hub needs. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// session is one live connection bound to a user. Each session owns a
// buffered outbound queue drained by a single writer goroutine, so
// events pushed to a connection are delivered FIFO and pushing never
// blocks the caller.
type session struct {
	userID string
	handle string
	conn   Conn

	send chan Event
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// push enqueues without ever blocking. A closed or saturated session
// drops the event and reports false.
func (s *session) push(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

func (s *session) writer() {
	defer func() { _ = s.conn.Close() }()
	for {
		select {
		case ev := <-s.send:
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-s.done:
			// Drain what was queued before shutdown.
			for {
				select {
				case ev := <-s.send:
					if err := s.conn.WriteJSON(ev); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Hub is the presence registry: the single source of truth within this
// process for which user is reachable over which live connection. One
// active session per user; a reconnect silently supersedes the previous
// mapping (last write wins).
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session

	buffer int
	log    zerolog.Logger
}

func NewHub(sendBuffer int, log zerolog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		sessions: make(map[string]*session),
		buffer:   sendBuffer,
		log:      log,
	}
}

// Register binds the connection to the user, overwriting any prior
// session for that user. The superseded connection is closed. Every
// registration broadcasts the updated online set.
func (h *Hub) Register(userID, handle string, conn Conn) {
	if userID == "" || handle == "" || conn == nil {
		return
	}
	s := &session{
		userID: userID,
		handle: handle,
		conn:   conn,
		send:   make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	old := h.sessions[userID]
	h.sessions[userID] = s
	h.mu.Unlock()

	go s.writer()
	if old != nil {
		old.close()
	}
	h.broadcastOnline()
}

// Unregister removes the mapping only when the registered handle equals
// the given one, so a late disconnect of a superseded connection never
// evicts the newer session.
func (h *Hub) Unregister(userID, handle string) {
	h.mu.Lock()
	s, ok := h.sessions[userID]
	if !ok || s.handle != handle {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, userID)
	h.mu.Unlock()

	s.close()
	h.broadcastOnline()
}

// Lookup reports whether the user has a live connection. Unknown users
// are simply absent, never an error.
func (h *Hub) Lookup(userID string) (handle string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	if !ok {
		return "", false
	}
	return s.handle, true
}

// OnlineUsers returns the sorted set of currently connected user ids.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Push enqueues the event for the user's connection. Best effort: an
// offline user or a full queue drops the event and reports false.
func (h *Hub) Push(userID string, ev Event) bool {
	h.mu.RLock()
	s, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !s.push(ev) {
		h.log.Warn().Str("user_id", userID).Str("event", ev.Name).Msg("dropping event")
		return false
	}
	return true
}

func (h *Hub) broadcastOnline() {
	ev := NewEvent(EventOnlineUsers, h.OnlineUsers())

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.push(ev)
	}
}

// Close shuts down all sessions, e.g. at server stop.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
