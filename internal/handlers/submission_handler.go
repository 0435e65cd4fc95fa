package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/services"
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/brightpath-edu/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewSubmissionHandler(
	submissionService services.SubmissionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		validator:         validator,
	}
}

// CreateSubmission submits answers for a published exam
// @Summary Create submission
// @Description Submits answers for an exam. MCQ submissions are scored immediately, descriptive and voice submissions are queued for evaluation
// @Tags submissions
// @Accept json
// @Produce json
// @Param submission body services.CreateSubmissionRequest true "Submission data"
// @Success 201 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	h.LogRequest(c, "Creating submission")

	var req services.CreateSubmissionRequest
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

	submission, err := h.submissionService.Create(c.Request.Context(), &req, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// GetSubmission retrieves a submission by ID
// @Summary Get submission
// @Description Retrieves a submission. Learners can only access their own submissions
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting submission", "submission_id", id)

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	submission, err := h.submissionService.GetByID(c.Request.Context(), id, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// ListMySubmissions lists the authenticated learner's submissions
// @Summary List my submissions
// @Description Lists the authenticated user's own submissions
// @Tags submissions
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (pending, evaluated)"
// @Param exam_id query int false "Filter by exam"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submissions/me [get]
func (h *SubmissionHandler) ListMySubmissions(c *gin.Context) {
	h.LogRequest(c, "Listing own submissions")

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseSubmissionFilters(c)

	submissions, err := h.submissionService.ListByLearner(c.Request.Context(), userID.(string), filters, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// ListSubmissionsByLearner lists a learner's submissions (trainers and admins)
// @Summary List submissions by learner
// @Description Lists all submissions of a specific learner
// @Tags submissions
// @Accept json
// @Produce json
// @Param learner_id path string true "Learner ID"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /submissions/learner/{learner_id} [get]
func (h *SubmissionHandler) ListSubmissionsByLearner(c *gin.Context) {
	learnerID := strings.TrimSpace(c.Param("learner_id"))
	if learnerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Learner ID is required",
		})
		return
	}

	h.LogRequest(c, "Listing submissions by learner", "learner_id", learnerID)

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseSubmissionFilters(c)

	submissions, err := h.submissionService.ListByLearner(c.Request.Context(), learnerID, filters, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// ListSubmissionsByExam lists submissions for an exam (trainers and admins)
// @Summary List submissions by exam
// @Description Lists all submissions for a specific exam
// @Tags submissions
// @Accept json
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (pending, evaluated)"
// @Success 200 {object} services.SubmissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/exam/{exam_id} [get]
func (h *SubmissionHandler) ListSubmissionsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Listing submissions by exam", "exam_id", examID)

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	filters := h.parseSubmissionFilters(c)

	submissions, err := h.submissionService.ListByExam(c.Request.Context(), examID, filters, userID.(string))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// ===== HELPER METHODS =====

func (h *SubmissionHandler) parseIDParam(c *gin.Context, param string) uint {
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

func (h *SubmissionHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
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

func (h *SubmissionHandler) parseSubmissionFilters(c *gin.Context) repositories.SubmissionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if size > 100 {
		size = 100
	}

	filters := repositories.SubmissionFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		submissionStatus := models.SubmissionStatus(status)
		filters.Status = &submissionStatus
	}

	if submissionType := c.Query("submission_type"); submissionType != "" {
		t := models.SubmissionType(submissionType)
		filters.SubmissionType = &t
	}

	if examIDStr := c.Query("exam_id"); examIDStr != "" {
		if examID, err := strconv.ParseUint(examIDStr, 10, 32); err == nil {
			id := uint(examID)
			filters.ExamID = &id
		}
	}

	return filters
}

func (h *SubmissionHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Submission not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrExamNotPublished):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Exam is not published",
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
