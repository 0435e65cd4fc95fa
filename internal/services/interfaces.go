package services

import (
	"context"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type ExamQuestionRequest = validator.ExamQuestionRequest
type UpdateMaxMarksRequest = validator.UpdateMaxMarksRequest
type QuestionMaxPointsUpdate = validator.QuestionMaxPointsUpdate
type CreateSubmissionRequest = validator.SubmissionCreateRequest
type RecordEvaluationRequest = validator.RecordEvaluationRequest

type ExamResponse struct {
	*models.Exam
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanSubmit bool `json:"can_submit"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type SubmissionResponse struct {
	*models.Submission
	CanEvaluate bool `json:"can_evaluate"`
}

type SubmissionListResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// ===== SCORING DTOs =====

// QuestionScore is the auto-scoring outcome for a single mcq question.
type QuestionScore struct {
	QuestionIndex  int  `json:"question_index"`
	SelectedOption *int `json:"selected_option"` // nil when unanswered
	CorrectOption  int  `json:"correct_option"`
	Correct        bool `json:"correct"`
}

// ScoringResult is the auto-scoring outcome for an mcq submission: one
// point per correct answer, unanswered questions count as incorrect.
type ScoringResult struct {
	Score     int             `json:"score"`
	MaxScore  int             `json:"max_score"`
	Breakdown []QuestionScore `json:"breakdown"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// Status management
	Publish(ctx context.Context, id uint, userID string) error

	// Admin operations
	UpdateMaxMarks(ctx context.Context, id uint, req *UpdateMaxMarksRequest, adminID string) (*ExamResponse, error)

	// Statistics
	GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error)
}

type SubmissionService interface {
	// Create validates the answer payload against the exam, auto-scores
	// mcq submissions synchronously and persists others as pending.
	Create(ctx context.Context, req *CreateSubmissionRequest, learnerID string) (*SubmissionResponse, error)

	GetByID(ctx context.Context, id uint, userID string) (*SubmissionResponse, error)
	ListByLearner(ctx context.Context, learnerID string, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
	ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
}

type EvaluationService interface {
	// PendingQueue lists pending submissions oldest-first for evaluators.
	PendingQueue(ctx context.Context, filters repositories.PendingQueueFilters, evaluatorID string) (*SubmissionListResponse, error)

	// RecordEvaluation flips a pending submission to evaluated with a
	// score and written evaluation. Fails with ErrAlreadyEvaluated when
	// the submission is not pending.
	RecordEvaluation(ctx context.Context, submissionID uint, req *RecordEvaluationRequest, evaluatorID string) (*SubmissionResponse, error)

	GetQueueStats(ctx context.Context, evaluatorID string) (*repositories.QueueStats, error)
}

type ExportService interface {
	// ExportExamResults builds an xlsx workbook of the evaluated
	// submissions for an exam.
	ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Exam() ExamService
	Submission() SubmissionService
	Evaluation() EvaluationService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
