package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// ===== CONTENT =====

func (a *API) ListTests(ctx context.Context) ([]models.Test, error) {
	var out []models.Test
	if err := a.do(ctx, request{op: "list tests", optional: true, method: http.MethodGet, path: "/tests"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetTest(ctx context.Context, id models.ID) (*models.Test, error) {
	var out models.Test
	if err := a.do(ctx, request{op: "get test", optional: true, method: http.MethodGet, path: "/tests/" + url.PathEscape(id.String())}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListSections(ctx context.Context, testID models.ID) ([]models.Section, error) {
	var out []models.Section
	path := "/tests/" + url.PathEscape(testID.String()) + "/sections"
	if err := a.do(ctx, request{op: "list sections", optional: true, method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) ListQuestions(ctx context.Context, sectionID models.ID) ([]models.Question, error) {
	var out []models.Question
	path := "/sections/" + url.PathEscape(sectionID.String()) + "/questions"
	if err := a.do(ctx, request{op: "list questions", optional: true, method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetQuestion(ctx context.Context, id models.ID) (*models.Question, error) {
	var out models.Question
	if err := a.do(ctx, request{op: "get question", optional: true, method: http.MethodGet, path: "/questions/" + url.PathEscape(id.String())}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== ATTEMPTS & RESPONSES =====

type AttemptFilter struct {
	TestID models.ID
	UserID models.ID
}

func (a *API) ListAttempts(ctx context.Context, f AttemptFilter) ([]models.Attempt, error) {
	q := url.Values{}
	if !f.TestID.IsZero() {
		q.Set("test_id", f.TestID.String())
	}
	if !f.UserID.IsZero() {
		q.Set("user_id", f.UserID.String())
	}
	var out []models.Attempt
	if err := a.do(ctx, request{op: "list attempts", method: http.MethodGet, path: "/attempts", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type CreateAttemptRequest struct {
	TestID models.ID `json:"test_id"`
	UserID models.ID `json:"user_id,omitempty"`
}

func (a *API) CreateAttempt(ctx context.Context, req CreateAttemptRequest) (*models.Attempt, error) {
	var out models.Attempt
	if err := a.do(ctx, request{op: "create attempt", method: http.MethodPost, path: "/attempts", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) FinalizeAttempt(ctx context.Context, id models.ID, submitTime time.Time) (*models.Attempt, error) {
	body := map[string]string{"submit_time": submitTime.UTC().Format(time.RFC3339)}
	var out models.Attempt
	path := "/attempts/" + url.PathEscape(id.String())
	if err := a.do(ctx, request{op: "finalize attempt", method: http.MethodPost, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListResponses(ctx context.Context, attemptID models.ID) ([]models.Response, error) {
	q := url.Values{"attempt_id": {attemptID.String()}}
	var out []models.Response
	if err := a.do(ctx, request{op: "list responses", method: http.MethodGet, path: "/responses", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateResponse upserts the answer of one question within an attempt.
func (a *API) CreateResponse(ctx context.Context, r models.Response) (*models.Response, error) {
	var out models.Response
	if err := a.do(ctx, request{op: "create response", method: http.MethodPost, path: "/responses", body: r}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== MEDIA =====

type CreateMediaRequest struct {
	Type        models.MediaType `json:"type"`
	Label       string           `json:"label,omitempty"`
	Filename    string           `json:"filename,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
}

type MediaSlot struct {
	ID           models.ID `json:"id"`
	PresignedURL string    `json:"presignedUrl"`
}

func (a *API) CreateMedia(ctx context.Context, req CreateMediaRequest) (*MediaSlot, error) {
	var out MediaSlot
	if err := a.do(ctx, request{op: "create media", method: http.MethodPost, path: "/media", body: req}, &out); err != nil {
		return nil, err
	}
	if out.ID.IsZero() || out.PresignedURL == "" {
		return nil, fmt.Errorf("create media: incomplete slot returned")
	}
	return &out, nil
}

// Upload PUTs binary content straight to a presigned destination. The
// bearer token is not sent to object storage.
func (a *API) Upload(ctx context.Context, presignedURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))
	resp, err := a.c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return httpErr("upload", resp)
	}
	return nil
}

func (a *API) DownloadURL(ctx context.Context, mediaID models.ID) (string, error) {
	var out struct {
		PresignedURL string `json:"presignedUrl"`
	}
	path := "/media/" + url.PathEscape(mediaID.String()) + "/download"
	if err := a.do(ctx, request{op: "download media", optional: true, method: http.MethodGet, path: path}, &out); err != nil {
		return "", err
	}
	if out.PresignedURL == "" {
		return "", fmt.Errorf("download media %s: empty url: %w", mediaID, apperrors.ErrNotFound)
	}
	return out.PresignedURL, nil
}

func (a *API) AttachMediaToQuestion(ctx context.Context, questionID, mediaID models.ID) error {
	path := "/questions/" + url.PathEscape(questionID.String()) + "/media/" + url.PathEscape(mediaID.String())
	return a.do(ctx, request{op: "attach media", method: http.MethodPost, path: path}, nil)
}

// ===== USERS =====

func (a *API) GetUser(ctx context.Context, id models.ID) (*models.User, error) {
	var out models.User
	if err := a.do(ctx, request{op: "get user", method: http.MethodGet, path: "/users/" + url.PathEscape(id.String())}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateUser(ctx context.Context, id models.ID, patch map[string]any) (*models.User, error) {
	var out models.User
	path := "/users/" + url.PathEscape(id.String())
	if err := a.do(ctx, request{op: "update user", method: http.MethodPatch, path: path, body: patch}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== AUTH =====

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name,omitempty" validate:"omitempty,max=200"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*models.AuthSession, error) {
	var out models.AuthSession
	if err := c.do(ctx, nil, request{op: "login", method: http.MethodPost, path: "/auth/login", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.AuthSession, error) {
	var out models.AuthSession
	if err := c.do(ctx, nil, request{op: "register", method: http.MethodPost, path: "/auth/register", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
