package handlers

import (
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	BaseHandler
	exportService  services.ExportService
	sessionService services.SessionService
	backends       services.BackendFactory
	contexts       *SessionContexts
}

func NewExportHandler(
	exportService services.ExportService,
	sessionService services.SessionService,
	backends services.BackendFactory,
	contexts *SessionContexts,
	logger utils.Logger,
) *ExportHandler {
	return &ExportHandler{
		BaseHandler:    NewBaseHandler(logger),
		exportService:  exportService,
		sessionService: sessionService,
		backends:       backends,
		contexts:       contexts,
	}
}

// ExportAttempt downloads the saved responses of an attempt. With
// ?session= naming one of the caller's sessions, rows carry section and
// question titles.
// @Summary Export attempt responses
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Attempt ID"
// @Param format query string false "xlsx (default) or csv"
// @Param session query string false "Session ID for labels"
// @Success 200 {file} file
// @Failure 401 {object} ErrorResponse
// @Router /attempts/{id}/export [get]
func (h *ExportHandler) ExportAttempt(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	format := services.ExportFormat(c.DefaultQuery("format", string(services.ExportXLSX)))
	contentType := xlsxContentType
	switch format {
	case services.ExportXLSX:
	case services.ExportCSV:
		contentType = "text/csv; charset=utf-8"
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid format",
			Details: "format must be xlsx or csv",
		})
		return
	}

	var content *services.Content
	if sessionID := c.Query("session"); sessionID != "" {
		sess, err := h.sessionService.Get(sessionID, c.GetString(clientKeyContextKey))
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		content = sess.Content
	}

	h.LogRequest(c, "Exporting attempt", "attempt_id", attemptID, "format", format)

	api := h.backends(h.contexts.For(c))
	out, err := h.exportService.ExportResponses(c.Request.Context(), api, models.ID(attemptID), content, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attempt-%s-responses.%s", attemptID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, out)
}
