package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"github.com/shax201/mock-test-v1-sub003/internal/services"
	"github.com/shax201/mock-test-v1-sub003/internal/utils"
)

type HandlerManager struct {
	testHandler    *TestHandler
	sessionHandler *SessionHandler

	repo   repositories.Repository
	logger utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	repo repositories.Repository,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		testHandler:    NewTestHandler(serviceManager.Test(), serviceManager.Export(), validator, logger),
		sessionHandler: NewSessionHandler(serviceManager.Session(), validator, logger),
		repo:           repo,
		logger:         logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.repo, hm.logger))
	{
		staff := RequireRole(models.RoleInstructor, models.RoleAdmin)

		// Test routes
		tests := v1.Group("/tests")
		{
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.GET("/:id/details", hm.testHandler.GetTestWithDetails)

			tests.POST("", staff, hm.testHandler.CreateTest)
			tests.PUT("/:id", staff, hm.testHandler.UpdateTest)
			tests.DELETE("/:id", staff, hm.testHandler.DeleteTest)
			tests.POST("/:id/publish", staff, hm.testHandler.PublishTest)
			tests.POST("/:id/archive", staff, hm.testHandler.ArchiveTest)
			tests.POST("/:id/questions", staff, hm.testHandler.AddQuestions)
			tests.PUT("/:id/band-ranges", staff, hm.testHandler.ReplaceBandRanges)
			tests.GET("/:id/export", staff, hm.testHandler.ExportResults)
		}

		// Session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.GET("/:id/result", hm.sessionHandler.GetSessionResult)
			sessions.POST("/:id/answers", hm.sessionHandler.SaveAnswers)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.POST("/:id/timeout", hm.sessionHandler.HandleTimeout)
			sessions.POST("/:id/evaluate", staff, hm.sessionHandler.EvaluateSession)

			sessions.GET("/current/:test_id", hm.sessionHandler.GetCurrentSession)
			sessions.GET("/student/:student_id", hm.sessionHandler.ListStudentSessions)
			sessions.GET("/overall/:linked_test_id", hm.sessionHandler.GetOverallResult)
		}
	}
}

// HealthCheck reports service liveness and database reachability.
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	if err := hm.repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "mock-test-service",
	})
}
