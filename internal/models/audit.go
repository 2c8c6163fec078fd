package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEventType string

const (
	AuditSessionInitialized AuditEventType = "session_initialized"
	AuditSessionDemoMode    AuditEventType = "session_demo_mode"
	AuditAttemptStarted     AuditEventType = "attempt_started"
	AuditAttemptResumed     AuditEventType = "attempt_resumed"
	AuditAttemptSubmitted   AuditEventType = "attempt_submitted"
	AuditAnswerPersisted    AuditEventType = "answer_persisted"
	AuditAnswerFailed       AuditEventType = "answer_failed"
	AuditSectionChanged     AuditEventType = "section_changed"
	AuditUserLogin          AuditEventType = "user_login"
	AuditUserLogout         AuditEventType = "user_logout"
	AuditDataExported       AuditEventType = "data_exported"
)

// SessionAuditLog is one journal row of the runner's session activity.
type SessionAuditLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	EventType AuditEventType `json:"event_type" gorm:"not null;index;size:40"`

	SessionID string `json:"session_id" gorm:"size:36;index"`
	UserID    string `json:"user_id" gorm:"size:64;index"`
	TestID    string `json:"test_id" gorm:"size:64"`
	AttemptID string `json:"attempt_id" gorm:"size:64;index"`
	Mode      string `json:"mode" gorm:"size:16"`

	Description string         `json:"description" gorm:"type:text"`
	Metadata    datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	RequestID *string   `json:"request_id" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (SessionAuditLog) TableName() string {
	return "runner_session_audit_logs"
}
