package handlers

import (
	"io"
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	contexts       *SessionContexts
	recorder       *services.SessionRecorder
	validator      *validator.Validator
	maxUpload      int64
}

func NewSessionHandler(
	sessionService services.SessionService,
	contexts *SessionContexts,
	recorder *services.SessionRecorder,
	validator *validator.Validator,
	maxUpload int64,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		contexts:       contexts,
		recorder:       recorder,
		validator:      validator,
		maxUpload:      maxUpload,
	}
}

// answerSaved acknowledges an answer write with its current save status.
type answerSaved struct {
	QuestionID models.ID   `json:"question_id"`
	Save       interface{} `json:"save,omitempty"`
}

// CreateSession starts or resumes a test run
// @Summary Initialize session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.InitializeRequest true "Test selector and locale"
// @Success 201 {object} services.SessionState
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req services.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Initializing session", "test", req.Test, "locale", req.Locale)

	ctx := c.Request.Context()
	sess, err := h.sessionService.Initialize(ctx, req, h.contexts.For(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sess.State(ctx))
}

// GetSession returns the current section and every answer in it
// @Summary Get session state
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionState
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.State(c.Request.Context()))
}

// Advance moves to the next section. On the last section it submits.
// @Summary Next section
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.NavigationResult
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/advance [post]
func (h *SessionHandler) Advance(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	result, err := sess.Advance(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Previous section
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.NavigationResult
// @Router /sessions/{id}/retreat [post]
func (h *SessionHandler) Retreat(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Retreat(c.Request.Context()))
}

// Submit flushes pending writes and finalizes the attempt
// @Summary Submit attempt
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SubmitResult
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", sess.ID)

	result, err := h.sessionService.Submit(c.Request.Context(), sess)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CloseSession discards the session without submitting
// @Summary Close session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.sessionService.Close(sess)
	c.Status(http.StatusNoContent)
}

// Journal lists what has been recorded for the session so far
// @Summary Session journal
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} models.SessionAuditLog
// @Router /sessions/{id}/journal [get]
func (h *SessionHandler) Journal(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	entries, err := h.recorder.Journal(c.Request.Context(), sess.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []*models.SessionAuditLog{}
	}
	c.JSON(http.StatusOK, entries)
}

// SetAnswer records one answer edit
// @Summary Set answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param answer body services.AnswerRequest true "Answer value"
// @Success 200 {object} answerSaved
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	qid := models.ID(questionID)
	if err := h.sessionService.SetAnswer(c.Request.Context(), sess, qid, req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondSaved(c, http.StatusOK, sess, qid)
}

// UploadMedia takes a recording, drawing or file as multipart field "file"
// @Summary Upload media answer
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param file formData file true "Captured media"
// @Success 202 {object} answerSaved
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id}/media [post]
func (h *SessionHandler) UploadMedia(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing or oversized file",
			Details: err.Error(),
		})
		return
	}
	f, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Unreadable file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Unreadable file", err)
		return
	}

	up := services.MediaUpload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}
	qid := models.ID(questionID)
	if err := h.sessionService.SetMediaAnswer(c.Request.Context(), sess, qid, up); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondSaved(c, http.StatusAccepted, sess, qid)
}

func (h *SessionHandler) respondSaved(c *gin.Context, status int, sess *services.Session, qid models.ID) {
	resp := answerSaved{QuestionID: qid}
	if state, ok := sess.Buffer().State(qid); ok {
		resp.Save = state
	}
	c.JSON(status, resp)
}

// session loads the path's session for the calling client, writing the
// error response itself when it cannot.
func (h *SessionHandler) session(c *gin.Context) (*services.Session, bool) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return nil, false
	}
	sess, err := h.sessionService.Get(id, c.GetString(clientKeyContextKey))
	if err != nil {
		h.handleServiceError(c, err)
		return nil, false
	}
	return sess, true
}
