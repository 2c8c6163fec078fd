// Package sessionctx holds the per-participant client state (bearer
// token, user profile, language preference) behind explicit accessors.
package sessionctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const keyPrefix = "runner:ctx:"

// Context is the session context of one browser client. It satisfies
// client.Credentials.
type Context struct {
	cache     cache.CacheService
	clientKey string
	ttl       time.Duration
	now       func() time.Time
}

func New(c cache.CacheService, clientKey string, ttl time.Duration) *Context {
	return &Context{
		cache:     c,
		clientKey: clientKey,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *Context) ClientKey() string { return c.clientKey }

func (c *Context) key(name string) string {
	return keyPrefix + c.clientKey + ":" + name
}

// Token returns the stored bearer token, or "" when there is none. An
// expired JWT is treated as absent and the context is cleared.
func (c *Context) Token(ctx context.Context) (string, error) {
	var token string
	if err := c.cache.Get(ctx, c.key("token"), &token); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	if TokenExpired(token, c.now()) {
		if err := c.Clear(ctx); err != nil {
			return "", err
		}
		return "", nil
	}
	return token, nil
}

func (c *Context) SetToken(ctx context.Context, token string) error {
	return c.cache.Set(ctx, c.key("token"), token, c.ttl)
}

// User returns the stored profile, or nil when nobody is logged in.
func (c *Context) User(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.cache.Get(ctx, c.key("user"), &u); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user: %w", err)
	}
	return &u, nil
}

func (c *Context) SetUser(ctx context.Context, u models.User) error {
	return c.cache.Set(ctx, c.key("user"), u, c.ttl)
}

// Language returns the preferred locale, or def when none is stored.
func (c *Context) Language(ctx context.Context, def string) string {
	var lang string
	if err := c.cache.Get(ctx, c.key("language"), &lang); err != nil || lang == "" {
		return def
	}
	return lang
}

func (c *Context) SetLanguage(ctx context.Context, lang string) error {
	return c.cache.Set(ctx, c.key("language"), lang, c.ttl)
}

// Store saves the outcome of a login or registration.
func (c *Context) Store(ctx context.Context, auth models.AuthSession) error {
	if err := c.SetToken(ctx, auth.Token); err != nil {
		return err
	}
	return c.SetUser(ctx, auth.User)
}

// Clear drops everything held for this client: logout and 401 both end here.
func (c *Context) Clear(ctx context.Context) error {
	return c.cache.DeletePattern(ctx, keyPrefix+c.clientKey+":*")
}

// Invalidate is called by the backend client on a 401.
func (c *Context) Invalidate(ctx context.Context) error {
	return c.Clear(ctx)
}

// TokenExpired reports whether token is a JWT whose exp claim is in the
// past. Opaque tokens are never considered expired here; the backend
// decides.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
