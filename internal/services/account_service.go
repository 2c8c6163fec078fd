package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/sessionctx"
)

// Authenticator issues tokens. *client.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, req client.LoginRequest) (*models.AuthSession, error)
	Register(ctx context.Context, req client.RegisterRequest) (*models.AuthSession, error)
}

// AccountService proxies authentication to the backend and keeps the
// outcome in the caller's session context.
type AccountService interface {
	Login(ctx context.Context, sc *sessionctx.Context, req client.LoginRequest) (*models.User, error)
	Register(ctx context.Context, sc *sessionctx.Context, req client.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context, sc *sessionctx.Context) error
	SetLanguage(ctx context.Context, sc *sessionctx.Context, locale string) error
}

type accountService struct {
	auth     Authenticator
	backends BackendFactory
	manager  *SessionManager
	recorder *SessionRecorder
	logger   *slog.Logger
}

func NewAccountService(auth Authenticator, backends BackendFactory, manager *SessionManager, recorder *SessionRecorder, logger *slog.Logger) AccountService {
	return &accountService{
		auth:     auth,
		backends: backends,
		manager:  manager,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *accountService) Login(ctx context.Context, sc *sessionctx.Context, req client.LoginRequest) (*models.User, error) {
	auth, err := s.auth.Login(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return s.store(ctx, sc, auth, models.AuditUserLogin)
}

func (s *accountService) Register(ctx context.Context, sc *sessionctx.Context, req client.RegisterRequest) (*models.User, error) {
	auth, err := s.auth.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return s.store(ctx, sc, auth, models.AuditUserLogin)
}

func (s *accountService) store(ctx context.Context, sc *sessionctx.Context, auth *models.AuthSession, event models.AuditEventType) (*models.User, error) {
	if auth.Token == "" {
		return nil, fmt.Errorf("backend returned no token: %w", ErrAuthRequired)
	}
	if err := sc.Store(ctx, *auth); err != nil {
		return nil, fmt.Errorf("failed to store session context: %w", err)
	}
	if auth.User.Language != "" {
		if err := sc.SetLanguage(ctx, auth.User.Language); err != nil {
			s.logger.WarnContext(ctx, "Failed to store profile language", "error", err)
		}
	}
	s.recorder.RecordAccountEvent(ctx, event, auth.User)
	s.logger.InfoContext(ctx, "Participant signed in", "user_id", auth.User.ID)
	return &auth.User, nil
}

// Logout clears the session context and drops the client's live sessions.
// Answers already persisted stay on the backend.
func (s *accountService) Logout(ctx context.Context, sc *sessionctx.Context) error {
	user, _ := sc.User(ctx)
	if err := sc.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session context: %w", err)
	}
	dropped := s.manager.RemoveClient(sc.ClientKey())
	if user != nil {
		s.recorder.RecordAccountEvent(ctx, models.AuditUserLogout, *user)
	}
	s.logger.InfoContext(ctx, "Participant signed out", "sessions_dropped", dropped)
	return nil
}

// SetLanguage stores the preferred locale. When someone is logged in the
// profile is updated too; a failed profile update is only logged.
func (s *accountService) SetLanguage(ctx context.Context, sc *sessionctx.Context, locale string) error {
	if err := sc.SetLanguage(ctx, locale); err != nil {
		return fmt.Errorf("failed to store language: %w", err)
	}
	user, err := sc.User(ctx)
	if err != nil || user == nil {
		return nil
	}
	updated, err := s.backends(sc).UpdateUser(ctx, user.ID, map[string]any{"language": locale})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to update profile language",
			"user_id", user.ID,
			"error", err)
		return nil
	}
	if updated != nil && !updated.ID.IsZero() {
		if err := sc.SetUser(ctx, *updated); err != nil {
			s.logger.WarnContext(ctx, "Failed to refresh stored profile", "error", err)
		}
	}
	return nil
}
