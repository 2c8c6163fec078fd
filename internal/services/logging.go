package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/utils"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, service string) *ServiceLogger {
	return &ServiceLogger{logger: logger.With("service", service)}
}

// ===== OPERATION LOGGING =====

// LogOperation logs the outcome of one operation. The level follows the
// error class: client-side failures are warnings, backend outages errors.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, resourceID string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsAuthRequired(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		case IsConflict(err):
			level = slog.LevelWarn
			status = "conflict"
		case IsNetwork(err):
			status = "backend_unavailable"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("resource_id", resourceID),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		}

		if level == slog.LevelError {
			if pc, file, line, ok := runtime.Caller(2); ok {
				if fn := runtime.FuncForPC(pc); fn != nil {
					attrs = append(attrs,
						slog.String("caller_func", fn.Name()),
						slog.String("caller_file", file),
						slog.Int("caller_line", line),
					)
				}
			}
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// ===== MIDDLEWARE AND HELPERS =====

// ContextualLogger times one operation and logs its result
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, resourceID, time.Since(cl.startTime), err)
}

// ===== ERROR FORMATTING HELPERS =====

// FormatError describes err for structured logs and error payloads.
func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var validationErr ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		result["type"] = "validation"
		result["count"] = len(validationErr)
		fields := make([]map[string]interface{}, len(validationErr))
		for i, v := range validationErr {
			fields[i] = map[string]interface{}{
				"field":   v.Field,
				"message": v.Message,
				"value":   SanitizeForLogging(v.Value),
			}
		}
		result["errors"] = fields
	case IsValidation(err):
		result["type"] = "validation"
	case IsAuthRequired(err):
		result["type"] = "unauthorized"
	case IsForbidden(err):
		result["type"] = "forbidden"
	case IsNotFound(err):
		result["type"] = "not_found"
	case IsConflict(err):
		result["type"] = "conflict"
	case IsUpload(err):
		result["type"] = "upload"
	case IsNetwork(err):
		result["type"] = "network"
	}

	return result
}

// SanitizeForLogging removes credentials from data before logging
func SanitizeForLogging(data interface{}) interface{} {
	if data == nil {
		return nil
	}

	switch v := data.(type) {
	case string:
		return sanitizeString(v)
	case map[string]interface{}:
		return sanitizeMap(v)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = SanitizeForLogging(item)
		}
		return result
	default:
		return data
	}
}

var sensitiveKeys = []string{"password", "token", "secret", "authorization", "credential"}

func isSensitive(s string) bool {
	lower := strings.ToLower(s)
	for _, key := range sensitiveKeys {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}

func sanitizeString(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") || isSensitive(s) {
		return "[REDACTED]"
	}
	return s
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isSensitive(k) {
			result[k] = "[REDACTED]"
			continue
		}
		result[k] = SanitizeForLogging(v)
	}
	return result
}
