package events

import (
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// EventType names a session lifecycle event
type EventType string

const (
	EventSessionInitialized    EventType = "session.initialized"
	EventSessionDemoMode       EventType = "session.demo_mode"
	EventAttemptStarted        EventType = "attempt.started"
	EventAttemptResumed        EventType = "attempt.resumed"
	EventAttemptSubmitted      EventType = "attempt.submitted"
	EventResponsePersistFailed EventType = "response.persist_failed"
)

const (
	eventSource  = "assessment-runner"
	eventVersion = "1.0"
)

// SessionEvent is the envelope of every event the runner publishes
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type SessionInitializedEvent struct {
	SessionID    string             `json:"session_id"`
	TestID       models.ID          `json:"test_id"`
	TestTitle    string             `json:"test_title"`
	TestKind     models.TestKind    `json:"test_kind"`
	Mode         models.SessionMode `json:"mode"`
	Locale       string             `json:"locale"`
	SectionCount int                `json:"section_count"`
	UserID       models.ID          `json:"user_id,omitempty"`
}

type DemoModeEvent struct {
	SessionID string    `json:"session_id"`
	TestID    models.ID `json:"test_id"`
	Reason    string    `json:"reason"`
}

type AttemptEvent struct {
	SessionID     string     `json:"session_id"`
	AttemptID     models.ID  `json:"attempt_id"`
	TestID        models.ID  `json:"test_id"`
	UserID        models.ID  `json:"user_id,omitempty"`
	ResponseCount int        `json:"response_count,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

type PersistFailedEvent struct {
	SessionID  string    `json:"session_id"`
	AttemptID  models.ID `json:"attempt_id"`
	QuestionID models.ID `json:"question_id"`
	Upload     bool      `json:"upload"`
	Error      string    `json:"error"`
}
