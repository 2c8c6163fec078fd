package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	BaseHandler
	accountService services.AccountService
	contexts       *SessionContexts
	validator      *validator.Validator
}

func NewAccountHandler(
	accountService services.AccountService,
	contexts *SessionContexts,
	validator *validator.Validator,
	logger utils.Logger,
) *AccountHandler {
	return &AccountHandler{
		BaseHandler:    NewBaseHandler(logger),
		accountService: accountService,
		contexts:       contexts,
		validator:      validator,
	}
}

type LanguageRequest struct {
	Locale string `json:"locale" validate:"required,locale"`
}

// Login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body client.LoginRequest true "Email and password"
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req client.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	h.LogRequest(c, "Logging in")

	user, err := h.accountService.Login(c.Request.Context(), h.contexts.For(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Logged in", user)
}

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param account body client.RegisterRequest true "New account"
// @Success 201 {object} SuccessResponse{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	var req client.RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.accountService.Register(c.Request.Context(), h.contexts.For(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Registered", user)
}

// Logout clears the session context and drops the client's sessions
// @Summary Log out
// @Tags auth
// @Success 200 {object} SuccessResponse
// @Router /auth/logout [post]
func (h *AccountHandler) Logout(c *gin.Context) {
	if err := h.accountService.Logout(c.Request.Context(), h.contexts.For(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Logged out", nil)
}

// SetLanguage
// @Summary Set preferred language
// @Tags preferences
// @Accept json
// @Param language body LanguageRequest true "Locale tag"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /preferences/language [put]
func (h *AccountHandler) SetLanguage(c *gin.Context) {
	var req LanguageRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.accountService.SetLanguage(c.Request.Context(), h.contexts.For(c), req.Locale); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Language updated", gin.H{"locale": req.Locale})
}

func (h *AccountHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	if err := h.validator.Validate(req); err != nil {
		h.handleServiceError(c, err)
		return false
	}
	return true
}
