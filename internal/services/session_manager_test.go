package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bareSession(id, clientKey string, clock render.Clock) *Session {
	return &Session{
		ID:        id,
		ClientKey: clientKey,
		Content:   &Content{},
		clock:     clock,
		timed:     make(map[models.ID]*render.TimedDisplay),
		spans:     make(map[models.ID]*render.DigitSpanSequencer),
		lastSeen:  clock.Now(),
	}
}

func TestSessionManager_GetChecksOwner(t *testing.T) {
	clock := newFakeClock()
	m := NewSessionManager(time.Hour, discardLogger())
	m.Put(bareSession("s1", "client-a", clock))

	s, err := m.Get("s1", "client-a")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)

	_, err = m.Get("s1", "client-b")
	assert.ErrorIs(t, err, ErrSessionAccessDenied)

	_, err = m.Get("missing", "client-a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Remove("s1")
	assert.Equal(t, 0, m.Len())
}

func TestSessionManager_SweepDropsIdleSessions(t *testing.T) {
	clock := newFakeClock()
	m := NewSessionManager(30*time.Minute, discardLogger())
	m.now = clock.Now

	m.Put(bareSession("old", "client-a", clock))
	clock.Advance(20 * time.Minute)
	m.Put(bareSession("fresh", "client-a", clock))
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	_, err := m.Get("old", "client-a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get("fresh", "client-a")
	assert.NoError(t, err)
}

func TestSessionManager_RemoveClient(t *testing.T) {
	clock := newFakeClock()
	m := NewSessionManager(time.Hour, discardLogger())
	m.Put(bareSession("s1", "client-a", clock))
	m.Put(bareSession("s2", "client-a", clock))
	m.Put(bareSession("s3", "client-b", clock))

	assert.Equal(t, 2, m.RemoveClient("client-a"))
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_CloseAll(t *testing.T) {
	clock := newFakeClock()
	m := NewSessionManager(time.Hour, discardLogger())
	m.Put(bareSession("s1", "client-a", clock))
	m.Put(bareSession("s2", "client-b", clock))

	assert.Equal(t, 2, m.CloseAll(context.Background()))
	assert.Equal(t, 0, m.Len())
}
