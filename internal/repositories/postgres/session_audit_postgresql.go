package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/repositories"
	"gorm.io/gorm"
)

type SessionAuditPostgreSQL struct {
	db *gorm.DB
}

func NewSessionAuditPostgreSQL(db *gorm.DB) repositories.SessionAuditRepository {
	return &SessionAuditPostgreSQL{db: db}
}

func (r *SessionAuditPostgreSQL) Create(ctx context.Context, entry *models.SessionAuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SessionAuditPostgreSQL) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionAuditLog, error) {
	var entries []*models.SessionAuditLog
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *SessionAuditPostgreSQL) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.SessionAuditLog{})
	return result.RowsAffected, result.Error
}
