package models

import "time"

type Attempt struct {
	ID         ID         `json:"id"`
	UserID     ID         `json:"user_id"`
	TestID     ID         `json:"test_id"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	SubmitTime *time.Time `json:"submit_time"`
}

// IsOpen reports whether the attempt has not been submitted yet.
func (a Attempt) IsOpen() bool {
	return a.SubmitTime == nil
}

type Response struct {
	ID         ID     `json:"id,omitempty"`
	AttemptID  ID     `json:"attempt_id"`
	QuestionID ID     `json:"question_id"`
	AnswerText string `json:"answerText"`
}

// SessionMode says whether answers reach the backend.
type SessionMode string

const (
	// ModePersistent sessions hold an attempt and persist every answer.
	ModePersistent SessionMode = "persistent"
	// ModeEphemeral is demo mode: no attempt, nothing is persisted.
	ModeEphemeral SessionMode = "ephemeral"
)
