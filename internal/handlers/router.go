package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/quizforge/quiz-engine/internal/services"
	"github.com/quizforge/quiz-engine/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
}

func NewHandlerManager(
	attemptService services.AttemptService,
	exportService services.ExportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, exportService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Attempt session routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.PUT("/:session_id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:session_id/flags/:index", hm.attemptHandler.ToggleReviewFlag)
			attempts.POST("/:session_id/navigate", hm.attemptHandler.Navigate)
			attempts.POST("/:session_id/pause", hm.attemptHandler.PauseAttempt)
			attempts.POST("/:session_id/resume", hm.attemptHandler.ResumeAttempt)
			attempts.POST("/:session_id/tick", hm.attemptHandler.Tick)
			attempts.POST("/:session_id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:session_id/progress", hm.attemptHandler.GetProgress)
			attempts.DELETE("/:session_id", hm.attemptHandler.ExitAttempt)
		}

		// Quiz history and export routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("/:quiz_id/export", hm.attemptHandler.ExportQuizResults)
			quizzes.GET("/:quiz_id/students/:student_id/history", hm.attemptHandler.GetHistory)
			quizzes.GET("/:quiz_id/students/:student_id/export", hm.attemptHandler.ExportStudentHistory)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-engine",
		})
	})
}
