package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/repositories"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"gorm.io/datatypes"
)

// SessionRecorder publishes lifecycle events and journals them. Both
// are best effort: a failure is logged and never reaches the participant.
type SessionRecorder struct {
	publisher events.EventPublisher
	audit     repositories.SessionAuditRepository
	logger    *slog.Logger
}

func NewSessionRecorder(publisher events.EventPublisher, audit repositories.SessionAuditRepository, logger *slog.Logger) *SessionRecorder {
	if audit == nil {
		audit = repositories.NewNoopSessionAuditRepository()
	}
	return &SessionRecorder{
		publisher: publisher,
		audit:     audit,
		logger:    logger.With("component", "session_recorder"),
	}
}

type record struct {
	event       events.EventType
	audit       models.AuditEventType
	data        interface{}
	description string
}

func (r *SessionRecorder) record(ctx context.Context, s *Session, rec record) {
	if r == nil {
		return
	}

	if rec.event != "" && r.publisher != nil {
		if err := r.publisher.PublishSessionEvent(ctx, events.NewSessionEvent(rec.event, rec.data)); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish session event",
				"session_id", s.ID,
				"event_type", rec.event,
				"error", err)
		}
	}

	if rec.audit == "" {
		return
	}
	entry := &models.SessionAuditLog{
		EventType:   rec.audit,
		SessionID:   s.ID,
		TestID:      s.Content.Test.ID.String(),
		Mode:        string(s.Mode),
		Description: rec.description,
	}
	if s.User != nil {
		entry.UserID = s.User.ID.String()
	}
	if s.Attempt != nil {
		entry.AttemptID = s.Attempt.ID.String()
	}
	if raw, err := json.Marshal(rec.data); err == nil {
		entry.Metadata = datatypes.JSON(raw)
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		entry.RequestID = &requestID
	}
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "Failed to journal session event",
			"session_id", s.ID,
			"audit_event", rec.audit,
			"error", err)
	}
}

// RecordAccountEvent journals login and logout, which happen outside any session.
func (r *SessionRecorder) RecordAccountEvent(ctx context.Context, eventType models.AuditEventType, user models.User) {
	if r == nil {
		return
	}
	entry := &models.SessionAuditLog{
		EventType:   eventType,
		UserID:      user.ID.String(),
		Description: string(eventType) + " " + user.Email,
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		entry.RequestID = &requestID
	}
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "Failed to journal account event",
			"audit_event", eventType,
			"error", err)
	}
}

// RecordExport journals a response export.
func (r *SessionRecorder) RecordExport(ctx context.Context, attemptID models.ID, rows int, format string) {
	if r == nil {
		return
	}
	entry := &models.SessionAuditLog{
		EventType:   models.AuditDataExported,
		AttemptID:   attemptID.String(),
		Description: fmt.Sprintf("exported %d responses as %s", rows, format),
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		entry.RequestID = &requestID
	}
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "Failed to journal export",
			"attempt_id", attemptID,
			"error", err)
	}
}

// Journal returns the journal of one session, oldest first.
func (r *SessionRecorder) Journal(ctx context.Context, sessionID string) ([]*models.SessionAuditLog, error) {
	entries, err := r.audit.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal of session %s: %w", sessionID, err)
	}
	return entries, nil
}

// Prune drops journal rows older than retention.
func (r *SessionRecorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := r.audit.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune session journal: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Pruned session journal", "rows", n, "retention", retention.String())
	}
	return n, nil
}

// RunRetention prunes once per interval until stop is closed.
func (r *SessionRecorder) RunRetention(retention, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := r.Prune(ctx, retention); err != nil {
				r.logger.Warn("Journal retention failed", "error", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}
