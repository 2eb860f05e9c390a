package ws_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"rtchat/internal/ws"
)

// fakeConn records everything written to it.
type fakeConn struct {
	mu      sync.Mutex
	written []ws.Event
	closed  bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := v.(ws.Event); ok {
		c.written = append(c.written, ev)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newHub() *ws.Hub {
	return ws.NewHub(16, zerolog.Nop())
}

func TestHubRegisterAndLookup(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	hub.Register("alice", "h1", &fakeConn{})

	handle, ok := hub.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "h1", handle)

	_, ok = hub.Lookup("bob")
	assert.False(t, ok)
}

func TestHubReconnectSupersedes(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	first := &fakeConn{}
	hub.Register("alice", "h1", first)
	hub.Register("alice", "h2", &fakeConn{})

	handle, ok := hub.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "h2", handle)
	assert.Equal(t, []string{"alice"}, hub.OnlineUsers())
	assert.Eventually(t, first.isClosed, time.Second, 10*time.Millisecond,
		"superseded connection should be closed")
}

func TestHubStaleDisconnectDoesNotEvict(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	hub.Register("alice", "h1", &fakeConn{})
	hub.Register("alice", "h2", &fakeConn{})

	// Late disconnect of the superseded connection arrives now.
	hub.Unregister("alice", "h1")

	handle, ok := hub.Lookup("alice")
	assert.True(t, ok, "newer session must survive the stale disconnect")
	assert.Equal(t, "h2", handle)

	hub.Unregister("alice", "h2")
	_, ok = hub.Lookup("alice")
	assert.False(t, ok)
}

func TestHubOnlineUsersSorted(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	hub.Register("carol", "h3", &fakeConn{})
	hub.Register("alice", "h1", &fakeConn{})
	hub.Register("bob", "h2", &fakeConn{})

	assert.Equal(t, []string{"alice", "bob", "carol"}, hub.OnlineUsers())
}

func TestHubPushOfflineUser(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	ok := hub.Push("ghost", ws.NewEvent(ws.EventNewMessage, nil))
	assert.False(t, ok)
}

func TestHubPushOnlineUser(t *testing.T) {
	hub := newHub()
	defer hub.Close()

	conn := &fakeConn{}
	hub.Register("alice", "h1", conn)

	ok := hub.Push("alice", ws.NewEvent(ws.EventNewMessage, map[string]string{"body": "hi"}))
	assert.True(t, ok)
}
