package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	accountHandler *AccountHandler
	exportHandler  *ExportHandler
	validator      *validator.Validator
	contextTTL     time.Duration
}

// HandlerDeps is everything the HTTP layer needs from the process.
type HandlerDeps struct {
	Sessions   services.SessionService
	Accounts   services.AccountService
	Exports    services.ExportService
	Recorder   *services.SessionRecorder
	Backends   services.BackendFactory
	Cache      cache.CacheService
	Validator  *validator.Validator
	Logger     utils.Logger
	ContextTTL time.Duration
	MaxUpload  int64
}

func NewHandlerManager(deps HandlerDeps) *HandlerManager {
	contexts := NewSessionContexts(deps.Cache, deps.ContextTTL)
	return &HandlerManager{
		sessionHandler: NewSessionHandler(deps.Sessions, contexts, deps.Recorder, deps.Validator, deps.MaxUpload, deps.Logger),
		accountHandler: NewAccountHandler(deps.Accounts, contexts, deps.Validator, deps.Logger),
		exportHandler:  NewExportHandler(deps.Exports, deps.Sessions, deps.Backends, contexts, deps.Logger),
		validator:      deps.Validator,
		contextTTL:     deps.ContextTTL,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(ClientKeyMiddleware(hm.validator, hm.contextTTL))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", hm.accountHandler.Login)
			auth.POST("/register", hm.accountHandler.Register)
			auth.POST("/logout", hm.accountHandler.Logout)
		}

		v1.PUT("/preferences/language", hm.accountHandler.SetLanguage)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)
			sessions.POST("/:id/advance", hm.sessionHandler.Advance)
			sessions.POST("/:id/retreat", hm.sessionHandler.Retreat)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.GET("/:id/journal", hm.sessionHandler.Journal)

			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SetAnswer)
			sessions.POST("/:id/answers/:question_id/media", hm.sessionHandler.UploadMedia)
		}

		v1.GET("/attempts/:id/export", hm.exportHandler.ExportAttempt)
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "assessment-runner",
	})
}

// NewRouter builds the engine with the logging middleware chain.
func NewRouter(hm *HandlerManager, logger utils.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	hm.SetupRoutes(router)
	return router
}
