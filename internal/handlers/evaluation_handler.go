package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/services"
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/brightpath-edu/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type EvaluationHandler struct {
	BaseHandler
	evaluationService services.EvaluationService
	validator         *validator.Validator
}

func NewEvaluationHandler(
	evaluationService services.EvaluationService,
	validator *validator.Validator,
	logger utils.Logger,
) *EvaluationHandler {
	return &EvaluationHandler{
		BaseHandler:       NewBaseHandler(logger),
		evaluationService: evaluationService,
		validator:         validator,
	}
}

// GetPendingQueue lists pending submissions oldest-first
// @Summary Get pending evaluation queue
// @Description Lists pending submissions ordered by submission time so the oldest is evaluated first
// @Tags evaluations
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param exam_id query int false "Filter by exam"
// @Param submission_type query string false "Filter by type (descriptive, voice)"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /evaluations/queue [get]
func (h *EvaluationHandler) GetPendingQueue(c *gin.Context) {
	h.LogRequest(c, "Getting pending evaluation queue")

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseQueueFilters(c)

	queue, err := h.evaluationService.PendingQueue(c.Request.Context(), filters, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, queue)
}

// RecordEvaluation records a score and evaluation for a pending submission
// @Summary Record evaluation
// @Description Records a trainer's score and written evaluation for a pending submission. A submission can only be evaluated once
// @Tags evaluations
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param evaluation body services.RecordEvaluationRequest true "Evaluation data"
// @Success 200 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /evaluations/{id} [post]
func (h *EvaluationHandler) RecordEvaluation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Recording evaluation", "submission_id", id)

	var req services.RecordEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	submission, err := h.evaluationService.RecordEvaluation(c.Request.Context(), id, &req, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetQueueStats retrieves statistics about the pending queue
// @Summary Get queue stats
// @Description Retrieves pending counts by type and the age of the oldest waiting submission
// @Tags evaluations
// @Accept json
// @Produce json
// @Success 200 {object} SuccessResponse{data=repositories.QueueStats}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /evaluations/queue/stats [get]
func (h *EvaluationHandler) GetQueueStats(c *gin.Context) {
	h.LogRequest(c, "Getting evaluation queue stats")

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	stats, err := h.evaluationService.GetQueueStats(c.Request.Context(), userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Queue stats retrieved successfully",
		Data:    stats,
	})
}

// ===== HELPER METHODS =====

func (h *EvaluationHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return 0
	}
	return uint(id)
}

func (h *EvaluationHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
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

func (h *EvaluationHandler) parseQueueFilters(c *gin.Context) repositories.PendingQueueFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if size > 100 {
		size = 100
	}

	filters := repositories.PendingQueueFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if examIDStr := c.Query("exam_id"); examIDStr != "" {
		if examID, err := strconv.ParseUint(examIDStr, 10, 32); err == nil {
			id := uint(examID)
			filters.ExamID = &id
		}
	}

	if submissionType := c.Query("submission_type"); submissionType != "" {
		t := models.SubmissionType(submissionType)
		filters.SubmissionType = &t
	}

	return filters
}

func (h *EvaluationHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAlreadyEvaluated):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already evaluated",
		})
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Submission not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized access",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
