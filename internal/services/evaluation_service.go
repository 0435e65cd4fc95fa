package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-edu/exam-service/internal/events"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
	"gorm.io/gorm"
)

type evaluationService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewEvaluationService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) EvaluationService {
	return &evaluationService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(v),
		publisher: publisher,
	}
}

// ===== PENDING QUEUE =====

// PendingQueue lists pending submissions oldest-first so evaluators work
// through them in arrival order.
func (s *evaluationService) PendingQueue(ctx context.Context, filters repositories.PendingQueueFilters, evaluatorID string) (*SubmissionListResponse, error) {
	if err := s.checkEvaluatorRole(ctx, evaluatorID, "list"); err != nil {
		return nil, err
	}

	submissions, total, err := s.repo.Submission().ListPending(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}

	responses := make([]*SubmissionResponse, len(submissions))
	for i, sub := range submissions {
		responses[i] = &SubmissionResponse{Submission: sub, CanEvaluate: true}
	}

	page := 1
	size := filters.Limit
	if size <= 0 {
		size = len(submissions)
	} else {
		page = filters.Offset/size + 1
	}

	return &SubmissionListResponse{
		Submissions: responses,
		Total:       total,
		Page:        page,
		Size:        size,
	}, nil
}

// ===== RECORDING EVALUATIONS =====

// RecordEvaluation stores a trainer's score and written evaluation for a
// pending submission. The pending check and the write happen in one
// conditional update, so two evaluators racing on the same submission
// resolve to exactly one winner.
func (s *evaluationService) RecordEvaluation(ctx context.Context, submissionID uint, req *RecordEvaluationRequest, evaluatorID string) (*SubmissionResponse, error) {
	s.logger.Info("Recording evaluation",
		"submission_id", submissionID,
		"score", req.Score,
		"evaluator_id", evaluatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.checkEvaluatorRole(ctx, evaluatorID, "evaluate"); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByID(ctx, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	if submission.IsEvaluated() {
		return nil, ErrAlreadyEvaluated
	}

	exam, err := s.repo.Exam().GetByID(ctx, submission.ExamID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if errs := s.business.ValidateScoreRange(req.Score, exam.TotalMaxMarks); len(errs) > 0 {
		return nil, errs
	}

	evaluatedAt := time.Now()
	updated, err := s.repo.Submission().MarkEvaluated(ctx, submissionID, req.Score, req.Evaluation, &evaluatorID, evaluatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}
	if !updated {
		// Lost the race with another evaluator
		return nil, ErrAlreadyEvaluated
	}

	submission.Status = models.SubmissionEvaluated
	submission.Score = &req.Score
	submission.Evaluation = &req.Evaluation
	submission.EvaluatedBy = &evaluatorID
	submission.EvaluatedAt = &evaluatedAt

	s.publishEvaluated(ctx, submission)

	s.logger.Info("Evaluation recorded successfully",
		"submission_id", submissionID,
		"score", req.Score,
		"evaluator_id", evaluatorID)

	return &SubmissionResponse{Submission: submission, CanEvaluate: false}, nil
}

// ===== QUEUE STATISTICS =====

func (s *evaluationService) GetQueueStats(ctx context.Context, evaluatorID string) (*repositories.QueueStats, error) {
	if err := s.checkEvaluatorRole(ctx, evaluatorID, "view stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Submission().GetQueueStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *evaluationService) checkEvaluatorRole(ctx context.Context, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewPermissionError("evaluation", action, "user not found")
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Role.CanEvaluate() {
		return NewPermissionError("evaluation", action, "requires trainer or admin role")
	}
	return nil
}

func (s *evaluationService) publishEvaluated(ctx context.Context, submission *models.Submission) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventSubmissionEvaluated, events.SubmissionEvaluatedData{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		LearnerID:    submission.LearnerID,
		Score:        *submission.Score,
		EvaluatedBy:  submission.EvaluatedBy,
		EvaluatedAt:  *submission.EvaluatedAt,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish submission evaluated event",
			"submission_id", submission.ID, "error", err)
	}
}
