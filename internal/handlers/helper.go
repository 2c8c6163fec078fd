package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/sessionctx"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientKeyHeader     = "X-Client-ID"
	ClientKeyCookie     = "runner_client"
	clientKeyContextKey = "client_key"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ClientKeyMiddleware identifies the browser client. A client without a
// key is issued one in the runner_client cookie.
func ClientKeyMiddleware(v *validator.Validator, cookieTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(ClientKeyHeader)
		if key == "" {
			key, _ = c.Cookie(ClientKeyCookie)
		}
		if key == "" {
			key = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientKeyCookie, key, int(cookieTTL.Seconds()), "/", "", false, true)
		}
		if err := v.Var(key, "client_key"); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid client key",
				Details: err.Error(),
			})
			return
		}
		c.Set(clientKeyContextKey, key)
		c.Next()
	}
}

// SessionContexts builds the per-client session context for a request.
type SessionContexts struct {
	cache cache.CacheService
	ttl   time.Duration
}

func NewSessionContexts(c cache.CacheService, ttl time.Duration) *SessionContexts {
	return &SessionContexts{cache: c, ttl: ttl}
}

func (s *SessionContexts) For(c *gin.Context) *sessionctx.Context {
	return sessionctx.New(s.cache, c.GetString(clientKeyContextKey), s.ttl)
}
