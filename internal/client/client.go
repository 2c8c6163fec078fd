package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/google/uuid"
)

const maxErrorBody = 2048

// Credentials supplies the bearer token of one participant and is told
// when the backend rejects it.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is the shared, credential-less part of the backend client.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "backend_client"),
	}, nil
}

// As returns an API bound to one participant's credentials.
func (c *Client) As(creds Credentials) *API {
	return &API{c: c, creds: creds}
}

// API issues authenticated calls on behalf of one participant.
type API struct {
	c     *Client
	creds Credentials
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	auth   bool

	// optional sends the request anonymously when no token is stored
	optional bool
}

// do performs one JSON round trip. out may be nil.
func (c *Client) do(ctx context.Context, creds Credentials, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}
	requestID := utils.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if r.auth {
		token, err := tokenOf(ctx, creds)
		if err != nil {
			return fmt.Errorf("%s: read token: %w", r.op, err)
		}
		switch {
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		case !r.optional:
			return fmt.Errorf("%s: %w", r.op, apperrors.ErrAuthRequired)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend request failed",
			"op", r.op,
			"request_id", requestID,
			"error", err)
		return fmt.Errorf("%s: %w: %v", r.op, apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status_code", resp.StatusCode,
		"duration", time.Since(start).String(),
		"request_id", requestID)

	if resp.StatusCode/100 != 2 {
		apiErr := httpErr(r.op, resp)
		if resp.StatusCode == http.StatusUnauthorized && creds != nil {
			if ierr := creds.Invalidate(ctx); ierr != nil {
				c.logger.WarnContext(ctx, "Failed to clear session context after 401",
					"op", r.op,
					"error", ierr)
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %v", r.op, apperrors.ErrNetwork, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := decodeEnvelope(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

func tokenOf(ctx context.Context, creds Credentials) (string, error) {
	if creds == nil {
		return "", nil
	}
	return creds.Token(ctx)
}

func httpErr(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &apperrors.APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}

// decodeEnvelope accepts both bare payloads and {"data": ...} envelopes.
func decodeEnvelope(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err == nil {
			for _, key := range []string{"data", "items", "results"} {
				if inner, ok := env[key]; ok && len(env) <= 4 && isContainer(inner) && !hasIDField(env) {
					return json.Unmarshal(inner, out)
				}
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

func isContainer(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '[' || t[0] == '{')
}

func hasIDField(env map[string]json.RawMessage) bool {
	_, ok := env["id"]
	return ok
}

func (a *API) do(ctx context.Context, r request, out any) error {
	r.auth = true
	return a.c.do(ctx, a.creds, r, out)
}
