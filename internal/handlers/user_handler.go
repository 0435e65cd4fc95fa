package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler serves read-only user lookups. User data is owned by the
// identity provider; this service only resolves names and roles so
// evaluators can be attributed on submissions.
type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// ListUsers lists users for evaluators
// @Summary List users
// @Description Get a paginated list of users. Restricted to trainer and admin roles
// @Tags users
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} map[string]interface{} "User list response"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	if !h.requireEvaluator(c) {
		return
	}

	h.LogRequest(c, "Listing users")
	h.listUsers(c, "")
}

// SearchUsers searches users by name or email for evaluators
// @Summary Search users
// @Description Search users by name or email. Restricted to trainer and admin roles
// @Tags users
// @Accept json
// @Produce json
// @Param q query string true "Search query"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} map[string]interface{} "User search results"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/search [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Search query parameter 'q' is required",
		})
		return
	}

	if !h.requireEvaluator(c) {
		return
	}

	h.LogRequest(c, "Searching users", "query", query)
	h.listUsers(c, query)
}

// GetUser retrieves a user by ID
// @Summary Get user by ID
// @Description Resolve a single user, e.g. the evaluator recorded on a submission
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "User ID is required",
		})
		return
	}

	if _, err := GetUserIDFromContext(c); err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Message: "User not found",
			})
			return
		}
		h.LogError(c, err, "Failed to get user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to get user",
		})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ===== HELPER METHODS =====

// requireEvaluator rejects callers whose role cannot evaluate. Browsing the
// user directory is an evaluator concern; learners only ever resolve single
// users through GetUser.
func (h *UserHandler) requireEvaluator(c *gin.Context) bool {
	role, err := GetUserRoleFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return false
	}
	if !role.CanEvaluate() {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
		return false
	}
	return true
}

// listUsers runs a list or search against the user repository and writes the
// shared paginated payload.
func (h *UserHandler) listUsers(c *gin.Context, query string) {
	filters, page := h.parseUserFilters(c)

	var (
		users []*models.User
		total int64
		err   error
	)
	if query == "" {
		users, total, err = h.userRepo.List(c.Request.Context(), filters)
	} else {
		users, total, err = h.userRepo.Search(c.Request.Context(), query, filters)
	}
	if err != nil {
		h.LogError(c, err, "Failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list users",
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
		"page":  page,
		"size":  filters.Limit,
	})
}

func (h *UserHandler) parseUserFilters(c *gin.Context) (repositories.UserFilters, int) {
	page := 1
	size := 20

	if p := parsePositiveQuery(c, "page"); p > 0 {
		page = p
	}
	if s := parsePositiveQuery(c, "size"); s > 0 && s <= 100 {
		size = s
	}

	return repositories.UserFilters{
		Query:  c.Query("q"),
		Limit:  size,
		Offset: (page - 1) * size,
	}, page
}

func parsePositiveQuery(c *gin.Context, param string) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return 0
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return 0
	}
	return value
}
