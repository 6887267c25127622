package client

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"solconta/internal/session"
)

// SessionStore persists the session between runs.
type SessionStore interface {
	// Load returns the stored session, or nil when there is none.
	Load() (*session.Session, error)
	Save(s *session.Session) error
	Clear() error
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu sync.Mutex
	s  *session.Session
}

// Load implements SessionStore.
func (m *MemoryStore) Load() (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

// Save implements SessionStore.
func (m *MemoryStore) Save(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.s = &cp
	return nil
}

// Clear implements SessionStore.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

const sessionKey = "session"

// ViperStore keeps the session under the "session" key of a viper config
// file.
type ViperStore struct {
	v *viper.Viper
}

// NewViperStore stores the session in v's config file, which must be set.
func NewViperStore(v *viper.Viper) *ViperStore {
	return &ViperStore{v: v}
}

// Load implements SessionStore.
func (s *ViperStore) Load() (*session.Session, error) {
	if s.v.GetString(sessionKey+".access_token") == "" {
		return nil, nil
	}
	var stored session.Session
	if err := s.v.UnmarshalKey(sessionKey, &stored); err != nil {
		return nil, fmt.Errorf("reading stored session: %w", err)
	}
	return &stored, nil
}

// Save implements SessionStore.
func (s *ViperStore) Save(sess *session.Session) error {
	s.set(sess)
	return s.write()
}

// Clear implements SessionStore.
func (s *ViperStore) Clear() error {
	s.set(&session.Session{})
	return s.write()
}

// set writes every leaf key so the values shadow what was read from the
// file.
func (s *ViperStore) set(sess *session.Session) {
	s.v.Set(sessionKey+".access_token", sess.AccessToken)
	s.v.Set(sessionKey+".refresh_token", sess.RefreshToken)
	s.v.Set(sessionKey+".token_type", sess.TokenType)
	s.v.Set(sessionKey+".expires_at", sess.ExpiresAt)
	s.v.Set(sessionKey+".user.id", sess.User.ID)
	s.v.Set(sessionKey+".user.email", sess.User.Email)
	s.v.Set(sessionKey+".user.provider", sess.User.Provider)
}

func (s *ViperStore) write() error {
	if err := s.v.WriteConfig(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
