// Package session holds the signed-in identity of a client process.
//
// A Cell is the single owner of the current session. Writers publish changes
// through Set; everything else reads Current or subscribes to be told about
// changes.
package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Event names a session change.
type Event string

const (
	// EventInitialSession is published once, after the persisted session
	// (or its absence) has been restored.
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
	EventUserUpdated      Event = "USER_UPDATED"
)

// expiryLeeway treats a token as expired slightly early so it is never sent
// right as it lapses.
const expiryLeeway = 30 * time.Second

// User is the identity attached to a session.
type User struct {
	ID       string `json:"id" mapstructure:"id"`
	Email    string `json:"email" mapstructure:"email"`
	Provider string `json:"provider" mapstructure:"provider"`
}

// Session is an issued token pair.
type Session struct {
	AccessToken  string `json:"access_token" mapstructure:"access_token"`
	RefreshToken string `json:"refresh_token" mapstructure:"refresh_token"`
	TokenType    string `json:"token_type" mapstructure:"token_type"`
	// ExpiresAt is the access token expiry in Unix seconds.
	ExpiresAt int64 `json:"expires_at" mapstructure:"expires_at"`
	User      User  `json:"user" mapstructure:"user"`
}

// Expired reports whether the access token is expired, or about to be, at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Add(expiryLeeway).Before(time.Unix(s.ExpiresAt, 0))
}

// Listener is told about every session change. It receives a copy of the
// new session, nil when signed out.
type Listener func(event Event, s *Session)

// Cell holds the current session and the set of listeners.
type Cell struct {
	mu        sync.Mutex
	current   *Session
	listeners map[int]Listener
	nextID    int

	restored     chan struct{}
	restoredOnce sync.Once
	restorations int
}

// NewCell returns an empty, not yet restored cell.
func NewCell() *Cell {
	return &Cell{
		listeners: make(map[int]Listener),
		restored:  make(chan struct{}),
	}
}

// Set replaces the current session and notifies listeners in subscription
// order. A SIGNED_OUT event always clears the session.
//
// Listeners run on the caller's goroutine after the cell is updated, so they
// may read Current but must not call Set.
func (c *Cell) Set(event Event, s *Session) {
	if event == EventSignedOut {
		s = nil
	}

	c.mu.Lock()
	c.current = clone(s)
	if event == EventInitialSession {
		c.restorations++
	}
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	if event == EventInitialSession {
		c.restoredOnce.Do(func() { close(c.restored) })
	}

	for _, fn := range listeners {
		fn(event, clone(s))
	}
}

// Current returns a copy of the current session, or nil.
func (c *Cell) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.current)
}

// Subscribe registers fn and returns a function that removes it. Events
// published before Subscribe are not replayed.
func (c *Cell) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Restored is closed once the first INITIAL_SESSION event has been
// published.
func (c *Cell) Restored() <-chan struct{} {
	return c.restored
}

// Restorations returns how many INITIAL_SESSION events have been published.
// Listeners see the count including the event being delivered.
func (c *Cell) Restorations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restorations
}

// WaitRestored blocks until the session has been restored or ctx is done.
func (c *Cell) WaitRestored(ctx context.Context) error {
	select {
	case <-c.restored:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clone(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
