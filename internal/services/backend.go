package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// Backend is the backend API as seen by one participant. *client.API
// implements it.
type Backend interface {
	ListTests(ctx context.Context) ([]models.Test, error)
	GetTest(ctx context.Context, id models.ID) (*models.Test, error)
	ListSections(ctx context.Context, testID models.ID) ([]models.Section, error)
	ListQuestions(ctx context.Context, sectionID models.ID) ([]models.Question, error)
	GetQuestion(ctx context.Context, id models.ID) (*models.Question, error)

	ListAttempts(ctx context.Context, f client.AttemptFilter) ([]models.Attempt, error)
	CreateAttempt(ctx context.Context, req client.CreateAttemptRequest) (*models.Attempt, error)
	FinalizeAttempt(ctx context.Context, id models.ID, submitTime time.Time) (*models.Attempt, error)
	ListResponses(ctx context.Context, attemptID models.ID) ([]models.Response, error)
	CreateResponse(ctx context.Context, r models.Response) (*models.Response, error)

	DownloadURL(ctx context.Context, mediaID models.ID) (string, error)
	CreateMedia(ctx context.Context, req client.CreateMediaRequest) (*client.MediaSlot, error)
	Upload(ctx context.Context, presignedURL, contentType string, data []byte) error
	AttachMediaToQuestion(ctx context.Context, questionID, mediaID models.ID) error

	GetUser(ctx context.Context, id models.ID) (*models.User, error)
	UpdateUser(ctx context.Context, id models.ID, patch map[string]any) (*models.User, error)
}

// BackendFactory binds the backend API to a participant's credentials.
type BackendFactory func(creds client.Credentials) Backend

// ClientBackend adapts the shared backend client.
func ClientBackend(c *client.Client) BackendFactory {
	return func(creds client.Credentials) Backend {
		return c.As(creds)
	}
}
