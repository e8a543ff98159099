package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quiz-engine/internal/engine"
	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/quizforge/quiz-engine/internal/services"
	"github.com/quizforge/quiz-engine/internal/utils"
)

// AttemptHandler exposes the live attempt lifecycle over HTTP.
type AttemptHandler struct {
	service services.AttemptService
	export  services.ExportService
	logger  utils.Logger
}

func NewAttemptHandler(service services.AttemptService, export services.ExportService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		export:  export,
		logger:  logger,
	}
}

// ===== REQUEST STRUCTURES =====

type NavigateRequest struct {
	Index int `json:"index"`
}

type TickRequest struct {
	Elapsed int `json:"elapsed"`
}

// ===== ATTEMPT LIFECYCLE =====

// StartAttempt begins a new attempt session
// POST /api/v1/attempts
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.service.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// SubmitAnswer records an answer for one question
// PUT /api/v1/attempts/:session_id/answers
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	if err := h.service.SetAnswer(c.Request.Context(), sessionID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// ToggleReviewFlag flips the mark-for-review flag on a question
// POST /api/v1/attempts/:session_id/flags/:index
func (h *AttemptHandler) ToggleReviewFlag(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question index",
			Details: err.Error(),
		})
		return
	}

	flagged, err := h.service.ToggleReview(c.Request.Context(), sessionID, index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Review flag updated",
		Data:    gin.H{"index": index, "flagged": flagged},
	})
}

// Navigate moves the session to another question
// POST /api/v1/attempts/:session_id/navigate
func (h *AttemptHandler) Navigate(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	if err := h.service.Navigate(c.Request.Context(), sessionID, req.Index); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Navigated"})
}

// PauseAttempt suspends the session timers
// POST /api/v1/attempts/:session_id/pause
func (h *AttemptHandler) PauseAttempt(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	if err := h.service.Pause(c.Request.Context(), sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt paused"})
}

// ResumeAttempt continues a paused session
// POST /api/v1/attempts/:session_id/resume
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	if err := h.service.Resume(c.Request.Context(), sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt resumed"})
}

// Tick advances the session clock; the embedding client drives this at 1Hz
// POST /api/v1/attempts/:session_id/tick
func (h *AttemptHandler) Tick(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	req := TickRequest{Elapsed: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request body",
				Details: err.Error(),
			})
			return
		}
	}

	if err := h.service.Tick(c.Request.Context(), sessionID, req.Elapsed); err != nil {
		h.handleServiceError(c, err)
		return
	}

	progress, err := h.service.Progress(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SubmitAttempt finalizes and scores the session
// POST /api/v1/attempts/:session_id/submit
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	record, err := h.service.Submit(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetProgress returns the current session snapshot
// GET /api/v1/attempts/:session_id/progress
func (h *AttemptHandler) GetProgress(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	progress, err := h.service.Progress(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ExitAttempt abandons the session without submitting
// DELETE /api/v1/attempts/:session_id
func (h *AttemptHandler) ExitAttempt(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	if err := h.service.Exit(c.Request.Context(), sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt session closed"})
}

// ===== HISTORY AND EXPORT =====

// GetHistory returns the governed attempt history for one learner/quiz pair
// GET /api/v1/quizzes/:quiz_id/students/:student_id/history
func (h *AttemptHandler) GetHistory(c *gin.Context) {
	quizID := ParseStringIDParam(c, "quiz_id")
	if quizID == "" {
		return
	}
	studentID := ParseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}

	settings := models.QuizSettings{
		MaxAttempts:        h.parseIntQuery(c, "max_attempts", 0),
		RetakeDelayMinutes: h.parseIntQuery(c, "retake_delay_minutes", 0),
	}

	summary, err := h.service.History(c.Request.Context(), quizID, studentID, settings)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ExportQuizResults streams all attempts for a quiz as an Excel workbook
// GET /api/v1/quizzes/:quiz_id/export
func (h *AttemptHandler) ExportQuizResults(c *gin.Context) {
	quizID := ParseStringIDParam(c, "quiz_id")
	if quizID == "" {
		return
	}

	data, err := h.export.ExportQuizResults(c.Request.Context(), quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz-%s-results.xlsx", quizID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportStudentHistory streams one learner's history as an Excel workbook
// GET /api/v1/quizzes/:quiz_id/students/:student_id/export
func (h *AttemptHandler) ExportStudentHistory(c *gin.Context) {
	quizID := ParseStringIDParam(c, "quiz_id")
	if quizID == "" {
		return
	}
	studentID := ParseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}

	data, err := h.export.ExportStudentHistory(c.Request.Context(), quizID, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz-%s-student-%s.xlsx", quizID, studentID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ===== HELPERS =====

func (h *AttemptHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	var cooldownErr *engine.CooldownError
	if errors.As(err, &cooldownErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Retake not yet available",
			Details: gin.H{"wait_minutes": cooldownErr.WaitMinutes},
			Code:    "RETAKE_COOLDOWN",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt session not found",
		})
	case errors.Is(err, services.ErrQuizHasNoQuestions):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Quiz has no questions",
		})
	case errors.Is(err, engine.ErrAttemptsExhausted):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Maximum attempts exhausted",
			Code:    "ATTEMPTS_EXHAUSTED",
		})
	case errors.Is(err, engine.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, engine.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already in progress",
		})
	case errors.Is(err, engine.ErrPauseNotAllowed):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Pausing is not allowed for this quiz",
		})
	case errors.Is(err, engine.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is not active",
		})
	case engine.IsSubmissionFailure(err):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Submission failed, attempt stays resumable",
			Details: err.Error(),
			Code:    "SUBMISSION_RETRYABLE",
		})
	default:
		h.logger.LogError(err, "Unhandled service error",
			"path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
