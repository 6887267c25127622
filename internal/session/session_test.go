package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(token string) *Session {
	return &Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         User{ID: "user-1", Email: "ana@test.com", Provider: "email"},
	}
}

func TestCell_SetAndCurrent(t *testing.T) {
	c := NewCell()
	assert.Nil(t, c.Current())

	c.Set(EventSignedIn, sampleSession("a"))
	require.NotNil(t, c.Current())
	assert.Equal(t, "a", c.Current().AccessToken)

	// Current hands out copies.
	got := c.Current()
	got.AccessToken = "mutated"
	assert.Equal(t, "a", c.Current().AccessToken)

	c.Set(EventSignedOut, sampleSession("ignored"))
	assert.Nil(t, c.Current(), "sign-out always clears the session")
}

func TestCell_SubscribeNotifiesInOrder(t *testing.T) {
	c := NewCell()

	var order []string
	c.Subscribe(func(e Event, s *Session) { order = append(order, "first:"+string(e)) })
	c.Subscribe(func(e Event, s *Session) { order = append(order, "second:"+string(e)) })

	c.Set(EventSignedIn, sampleSession("a"))
	assert.Equal(t, []string{"first:SIGNED_IN", "second:SIGNED_IN"}, order)
}

func TestCell_ListenerSeesUpdatedState(t *testing.T) {
	c := NewCell()

	var seen *Session
	c.Subscribe(func(Event, *Session) { seen = c.Current() })

	c.Set(EventTokenRefreshed, sampleSession("b"))
	require.NotNil(t, seen)
	assert.Equal(t, "b", seen.AccessToken)
}

func TestCell_Unsubscribe(t *testing.T) {
	c := NewCell()

	calls := 0
	unsubscribe := c.Subscribe(func(Event, *Session) { calls++ })

	c.Set(EventSignedIn, sampleSession("a"))
	unsubscribe()
	unsubscribe()
	c.Set(EventSignedOut, nil)

	assert.Equal(t, 1, calls)
}

func TestCell_NoReplayForLateSubscribers(t *testing.T) {
	c := NewCell()
	c.Set(EventSignedIn, sampleSession("a"))

	calls := 0
	c.Subscribe(func(Event, *Session) { calls++ })
	assert.Zero(t, calls)
}

func TestCell_Restored(t *testing.T) {
	c := NewCell()

	select {
	case <-c.Restored():
		t.Fatal("cell should not start restored")
	default:
	}

	// Other events do not count as restoration.
	c.Set(EventSignedIn, sampleSession("a"))
	select {
	case <-c.Restored():
		t.Fatal("only INITIAL_SESSION restores")
	default:
	}

	c.Set(EventInitialSession, nil)
	c.Set(EventInitialSession, nil)

	select {
	case <-c.Restored():
	default:
		t.Fatal("cell should be restored after INITIAL_SESSION")
	}
	require.NoError(t, c.WaitRestored(context.Background()))
}

func TestCell_WaitRestoredHonorsContext(t *testing.T) {
	c := NewCell()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.WaitRestored(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCell_WaitRestoredUnblocks(t *testing.T) {
	c := NewCell()

	done := make(chan error, 1)
	go func() { done <- c.WaitRestored(context.Background()) }()

	c.Set(EventInitialSession, sampleSession("a"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitRestored did not return")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"well before expiry", now.Add(time.Hour), false},
		{"inside leeway", now.Add(10 * time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ExpiresAt: tt.expiresAt.Unix()}
			assert.Equal(t, tt.want, s.Expired(now))
		})
	}
}

func TestCell_Restorations(t *testing.T) {
	c := NewCell()
	assert.Zero(t, c.Restorations())

	var seen []int
	c.Subscribe(func(event Event, _ *Session) {
		if event == EventInitialSession {
			seen = append(seen, c.Restorations())
		}
	})

	c.Set(EventInitialSession, nil)
	c.Set(EventSignedIn, sampleSession("a"))
	c.Set(EventInitialSession, sampleSession("a"))

	assert.Equal(t, 2, c.Restorations())
	assert.Equal(t, []int{1, 2}, seen)
}
