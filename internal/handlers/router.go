package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/brightpath-edu/exam-service/internal/config"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/services"
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/brightpath-edu/exam-service/internal/validator"
)

type HandlerManager struct {
	examHandler       *ExamHandler
	submissionHandler *SubmissionHandler
	evaluationHandler *EvaluationHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:       NewExamHandler(serviceManager.Exam(), serviceManager.Export(), validator, logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), validator, logger),
		evaluationHandler: NewEvaluationHandler(serviceManager.Evaluation(), validator, logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware()) // Apply authentication to all API routes
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			// Create/modify exams - Trainers and Admins only
			exams.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.examHandler.CreateExam)
			exams.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.examHandler.DeleteExam)
			exams.POST("/:id/publish", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.examHandler.PublishExam)

			// Max marks adjustments - Admins only
			exams.PUT("/:id/max-marks", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.UpdateMaxMarks)

			// View exams - All authenticated users
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)

			// Stats and exports - Trainers and Admins only
			exams.GET("/:id/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.examHandler.GetExamStats)
			exams.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.examHandler.ExportExamResults)
		}

		// Submission routes
		submissions := v1.Group("/submissions")
		{
			submissions.POST("", hm.submissionHandler.CreateSubmission)
			submissions.GET("/me", hm.submissionHandler.ListMySubmissions)
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)

			// Cross-learner views - Trainers and Admins only
			submissions.GET("/learner/:learner_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.submissionHandler.ListSubmissionsByLearner)
			submissions.GET("/exam/:exam_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin), hm.submissionHandler.ListSubmissionsByExam)
		}

		// Evaluation routes - Trainers and Admins only
		evaluations := v1.Group("/evaluations")
		evaluations.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTrainer, models.RoleAdmin))
		{
			evaluations.GET("/queue", hm.evaluationHandler.GetPendingQueue)
			evaluations.GET("/queue/stats", hm.evaluationHandler.GetQueueStats)
			evaluations.POST("/:id", hm.evaluationHandler.RecordEvaluation)
		}

		// User routes (directory browsing is evaluator-gated in the handler;
		// single-user lookup stays open for evaluator attribution)
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
