package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSessionTTL = 4 * time.Hour

// SessionManager keeps the live sessions of this process.
type SessionManager struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(ttl time.Duration, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With("component", "session_manager"),
		sessions: make(map[string]*Session),
	}
}

func (m *SessionManager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Get returns the session with id if it belongs to clientKey.
func (m *SessionManager) Get(id, clientKey string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.ClientKey != clientKey {
		return nil, ErrSessionAccessDenied
	}
	return s, nil
}

func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// RemoveClient drops every session of one browser client, used on logout.
func (m *SessionManager) RemoveClient(clientKey string) int {
	m.mu.Lock()
	var dropped []*Session
	for id, s := range m.sessions {
		if s.ClientKey == clientKey {
			dropped = append(dropped, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range dropped {
		s.Close()
	}
	return len(dropped)
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the TTL.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("Swept idle sessions", "count", len(expired))
	}
	return len(expired)
}

// CloseAll drops every session after waiting for its pending answer
// writes, bounded by ctx. It returns how many sessions were closed.
func (m *SessionManager) CloseAll(ctx context.Context) int {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		if b := s.Buffer(); b != nil {
			if err := b.Flush(ctx); err != nil {
				m.logger.Warn("Session closed with unsaved answers", "session_id", s.ID, "error", err)
			}
		}
		s.Close()
	}
	return len(all)
}

// Run sweeps every interval until stop is closed.
func (m *SessionManager) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-stop:
			return
		}
	}
}
