package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// SessionAuditRepository journals what happened in each test-taking session
type SessionAuditRepository interface {
	Create(ctx context.Context, entry *models.SessionAuditLog) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.SessionAuditLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NoopSessionAuditRepository is used when no database is configured
type NoopSessionAuditRepository struct{}

func NewNoopSessionAuditRepository() SessionAuditRepository {
	return NoopSessionAuditRepository{}
}

func (NoopSessionAuditRepository) Create(ctx context.Context, entry *models.SessionAuditLog) error {
	return nil
}

func (NoopSessionAuditRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionAuditLog, error) {
	return nil, nil
}

func (NoopSessionAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
