package ws

import (
	"sync"
	"time"
)

type typingKey struct {
	from  string
	to    string
	group bool
}

// TypingTracker holds active typing signals and expires them after a
// silence timeout, so a dropped "stopped typing" event cannot leave a
// peer's indicator stuck on.
type TypingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	active  map[typingKey]*time.Timer
	expired func(from, to string, group bool)
}

// NewTypingTracker builds a tracker; expired is invoked (on a timer
// goroutine) when a typing signal times out without an explicit stop.
func NewTypingTracker(timeout time.Duration, expired func(from, to string, group bool)) *TypingTracker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TypingTracker{
		timeout: timeout,
		active:  make(map[typingKey]*time.Timer),
		expired: expired,
	}
}

// Signal records a typing state change. A true signal arms (or re-arms)
// the expiry timer; a false signal cancels it.
func (t *TypingTracker) Signal(from, to string, group, isTyping bool) {
	key := typingKey{from: from, to: to, group: group}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.active[key]; ok {
		timer.Stop()
		delete(t.active, key)
	}
	if !isTyping {
		return
	}
	t.active[key] = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		delete(t.active, key)
		t.mu.Unlock()
		if t.expired != nil {
			t.expired(from, to, group)
		}
	})
}

// IsTyping reports whether an unexpired typing signal exists.
func (t *TypingTracker) IsTyping(from, to string, group bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[typingKey{from: from, to: to, group: group}]
	return ok
}

// CancelAllFrom drops every active signal originated by the user, used
// when their connection goes away.
func (t *TypingTracker) CancelAllFrom(from string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.active {
		if key.from == from {
			timer.Stop()
			delete(t.active, key)
		}
	}
}

// Stop cancels every pending timer.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.active {
		timer.Stop()
		delete(t.active, key)
	}
}
