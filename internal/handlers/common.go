package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	Code     string      `json:"code,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const loginPath = "/login"

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// requestLogger prefers the request-scoped logger set by
// utils.ContextLogger.
func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	if l, ok := c.Get("logger"); ok {
		if typed, ok := l.(utils.Logger); ok {
			return typed
		}
	}
	return h.logger
}

func (h *BaseHandler) fields(c *gin.Context, additional []interface{}) []interface{} {
	fields := []interface{}{"client_key", c.GetString(clientKeyContextKey)}
	return append(fields, additional...)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	h.requestLogger(c).Info(message, h.fields(c, additionalFields)...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.requestLogger(c).LogError(err, message, h.fields(c, additionalFields)...)
}

func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.requestLogger(c).Warn(message, h.fields(c, additionalFields)...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}

	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil && statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	switch {
	case services.IsAuthRequired(err):
		h.LogWarn(c, "Authentication required", "error", err)
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message:  "Authentication required",
			Code:     "auth_required",
			Redirect: loginPath,
		})
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied to session", err)
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Session not found", err)
	case errors.Is(err, services.ErrTestNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Test not found", err)
	case errors.Is(err, services.ErrQuestionNotInTest):
		h.RespondWithError(c, http.StatusNotFound, "Question not found in this test", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "Attempt already submitted", err)
	case services.IsUpload(err):
		h.RespondWithError(c, http.StatusBadGateway, "Media upload failed", err)
	case services.IsNetwork(err):
		h.RespondWithError(c, http.StatusBadGateway, "Backend unavailable", err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request", err, err.Error())
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
