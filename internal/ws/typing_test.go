package ws_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rtchat/internal/ws"
)

func TestTypingSignalAndStop(t *testing.T) {
	tracker := ws.NewTypingTracker(time.Minute, nil)
	defer tracker.Stop()

	tracker.Signal("alice", "bob", false, true)
	assert.True(t, tracker.IsTyping("alice", "bob", false))

	tracker.Signal("alice", "bob", false, false)
	assert.False(t, tracker.IsTyping("alice", "bob", false))
}

func TestTypingDirectAndGroupAreDistinct(t *testing.T) {
	tracker := ws.NewTypingTracker(time.Minute, nil)
	defer tracker.Stop()

	tracker.Signal("alice", "g1", true, true)
	assert.True(t, tracker.IsTyping("alice", "g1", true))
	assert.False(t, tracker.IsTyping("alice", "g1", false))
}

func TestTypingAutoExpiry(t *testing.T) {
	var mu sync.Mutex
	var expiredFrom, expiredTo string

	tracker := ws.NewTypingTracker(20*time.Millisecond, func(from, to string, group bool) {
		mu.Lock()
		defer mu.Unlock()
		expiredFrom, expiredTo = from, to
	})
	defer tracker.Stop()

	tracker.Signal("alice", "bob", false, true)

	assert.Eventually(t, func() bool {
		return !tracker.IsTyping("alice", "bob", false)
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return expiredFrom == "alice" && expiredTo == "bob"
	}, time.Second, 5*time.Millisecond)
}

func TestTypingCancelAllFrom(t *testing.T) {
	tracker := ws.NewTypingTracker(time.Minute, nil)
	defer tracker.Stop()

	tracker.Signal("alice", "bob", false, true)
	tracker.Signal("alice", "g1", true, true)
	tracker.Signal("carol", "bob", false, true)

	tracker.CancelAllFrom("alice")

	assert.False(t, tracker.IsTyping("alice", "bob", false))
	assert.False(t, tracker.IsTyping("alice", "g1", true))
	assert.True(t, tracker.IsTyping("carol", "bob", false))
}
