package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/brightpath-edu/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status    *models.ExamStatus `json:"status"`
	ExamType  *models.ExamType   `json:"exam_type"`
	CreatedBy *string            `json:"created_by"`
	Search    string             `json:"search"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type SubmissionFilters struct {
	ExamID         *uint                    `json:"exam_id"`
	LearnerID      *string                  `json:"learner_id"`
	SubmissionType *models.SubmissionType   `json:"submission_type"`
	Status         *models.SubmissionStatus `json:"status"`
	DateFrom       *time.Time               `json:"date_from"`
	DateTo         *time.Time               `json:"date_to"`
	Limit          int                      `json:"limit"`
	Offset         int                      `json:"offset"`
}

// PendingQueueFilters narrows the evaluation queue. Status is implicitly
// pending; ordering is implicitly submitted_at ascending.
type PendingQueueFilters struct {
	ExamID         *uint                  `json:"exam_id"`
	SubmissionType *models.SubmissionType `json:"submission_type"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExamStats struct {
	TotalSubmissions     int64   `json:"total_submissions"`
	PendingSubmissions   int64   `json:"pending_submissions"`
	EvaluatedSubmissions int64   `json:"evaluated_submissions"`
	AverageScore         float64 `json:"average_score"`
	HighestScore         int     `json:"highest_score"`
	LowestScore          int     `json:"lowest_score"`
}

type QueueStats struct {
	TotalPending  int64                           `json:"total_pending"`
	ByType        map[models.SubmissionType]int64 `json:"by_type"`
	OldestWaiting *time.Time                      `json:"oldest_waiting"`
}

// ===== REPOSITORY INTERFACES =====

// ExamRepository persists exams together with their ordered questions.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint, includeQuestions bool) (*models.Exam, error)
	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)

	Update(ctx context.Context, exam *models.Exam) error
	UpdateMaxMarks(ctx context.Context, id uint, totalMaxMarks int) error
	UpdateQuestionContent(ctx context.Context, examID, questionID uint, content datatypes.JSON) error
	UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) error
	Delete(ctx context.Context, id uint) error

	ExistsByID(ctx context.Context, id uint) (bool, error)
	HasSubmissions(ctx context.Context, id uint) (bool, error)
}

// SubmissionRepository persists submissions and drives the evaluation
// lifecycle. The status domain is exactly {pending, evaluated}.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	List(ctx context.Context, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// ListPending returns pending submissions ordered by submitted_at
	// ascending. Evaluated submissions never appear.
	ListPending(ctx context.Context, filters PendingQueueFilters) ([]*models.Submission, int64, error)

	// MarkEvaluated flips a pending submission to evaluated in a single
	// conditional update. Returns false when the submission was not
	// pending, so a concurrent second evaluation loses cleanly.
	MarkEvaluated(ctx context.Context, id uint, score int, evaluation string, evaluatorID *string, evaluatedAt time.Time) (bool, error)

	ListEvaluatedByExam(ctx context.Context, examID uint) ([]*models.Submission, error)

	GetExamStats(ctx context.Context, examID uint) (*ExamStats, error)
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}
