package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-edu/exam-service/internal/events"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type submissionService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewSubmissionService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) SubmissionService {
	return &submissionService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(v),
		publisher: publisher,
	}
}

// ===== SUBMISSION CREATION =====

// Create accepts a learner's answers for a published exam. MCQ submissions
// are scored synchronously and stored already evaluated; descriptive and
// voice submissions enter the queue as pending.
func (s *submissionService) Create(ctx context.Context, req *CreateSubmissionRequest, learnerID string) (*SubmissionResponse, error) {
	s.logger.Info("Creating submission",
		"exam_id", req.ExamID,
		"submission_type", req.SubmissionType,
		"learner_id", learnerID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, req.ExamID, true)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.Status != models.ExamPublished {
		return nil, ErrExamNotPublished
	}

	if req.SubmissionType != models.SubmissionTypeForExam(exam.ExamType) {
		return nil, NewValidationError("submission_type",
			fmt.Sprintf("submission type %s does not match exam type %s", req.SubmissionType, exam.ExamType))
	}

	submission := &models.Submission{
		ExamID:         req.ExamID,
		LearnerID:      learnerID,
		SubmissionType: req.SubmissionType,
		Status:         models.SubmissionPending,
		Answers:        datatypes.JSON(req.Answers),
		SubmittedAt:    time.Now(),
	}

	var scoring *ScoringResult

	switch req.SubmissionType {
	case models.SubmissionMCQ:
		scoring, err = s.prepareMCQSubmission(exam, req.Answers, submission)
	case models.SubmissionDescriptive:
		err = s.prepareDescriptiveSubmission(exam, req.Answers)
	case models.SubmissionVoice:
		err = s.prepareVoiceSubmission(exam, req.Answers)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Submission().Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.publishCreated(ctx, submission)
	if scoring != nil {
		s.publishEvaluated(ctx, submission)
	}

	s.logger.Info("Submission created successfully",
		"submission_id", submission.ID,
		"exam_id", submission.ExamID,
		"status", submission.Status)

	return &SubmissionResponse{Submission: submission, CanEvaluate: false}, nil
}

// prepareMCQSubmission decodes and scores mcq answers, marking the
// submission evaluated before it is persisted. EvaluatedBy stays nil for
// auto-scored submissions.
func (s *submissionService) prepareMCQSubmission(exam *models.Exam, payload json.RawMessage, submission *models.Submission) (*ScoringResult, error) {
	var answers []models.MCQAnswer
	if err := json.Unmarshal(payload, &answers); err != nil {
		return nil, NewValidationError("answers", "answers must be an array of mcq answers")
	}

	if err := s.validateAnswerReferences(exam, answerIndexes(len(answers), func(i int) int { return answers[i].QuestionIndex })); err != nil {
		return nil, err
	}

	for _, a := range answers {
		var content models.MCQContent
		q := exam.Questions[a.QuestionIndex]
		if err := json.Unmarshal(q.Content, &content); err != nil {
			return nil, fmt.Errorf("failed to decode question content: %w", err)
		}
		if a.SelectedOption < 0 || a.SelectedOption >= len(content.Options) {
			return nil, NewValidationError("answers",
				fmt.Sprintf("selected option %d is out of range for question %d", a.SelectedOption, a.QuestionIndex))
		}
	}

	result, err := ScoreMCQAnswers(exam.Questions, answers)
	if err != nil {
		return nil, fmt.Errorf("failed to score mcq answers: %w", err)
	}

	now := time.Now()
	evaluation := fmt.Sprintf("Auto-scored: %d of %d correct", result.Score, result.MaxScore)

	submission.Status = models.SubmissionEvaluated
	submission.Score = &result.Score
	submission.Evaluation = &evaluation
	submission.EvaluatedAt = &now
	// EvaluatedBy stays nil: scored by the system, not a person

	return result, nil
}

func (s *submissionService) prepareDescriptiveSubmission(exam *models.Exam, payload json.RawMessage) error {
	var answers []models.DescriptiveAnswer
	if err := json.Unmarshal(payload, &answers); err != nil {
		return NewValidationError("answers", "answers must be an array of descriptive answers")
	}
	for i, a := range answers {
		if a.Text == "" {
			return NewValidationError("answers", fmt.Sprintf("answer %d has empty text", i))
		}
	}
	return s.validateAnswerReferences(exam, answerIndexes(len(answers), func(i int) int { return answers[i].QuestionIndex }))
}

func (s *submissionService) prepareVoiceSubmission(exam *models.Exam, payload json.RawMessage) error {
	var answers []models.VoiceAnswer
	if err := json.Unmarshal(payload, &answers); err != nil {
		return NewValidationError("answers", "answers must be an array of voice answers")
	}
	for i, a := range answers {
		if a.RecordingURL == "" {
			return NewValidationError("answers", fmt.Sprintf("answer %d has no recording url", i))
		}
		if a.DurationSeconds == nil || *a.DurationSeconds <= 0 {
			return NewValidationError("answers", fmt.Sprintf("answer %d must have a positive duration", i))
		}
	}
	return s.validateAnswerReferences(exam, answerIndexes(len(answers), func(i int) int { return answers[i].QuestionIndex }))
}

func (s *submissionService) validateAnswerReferences(exam *models.Exam, indexes []int) error {
	if errs := s.business.ValidateAnswerIndexes(exam.QuestionCount(), indexes); len(errs) > 0 {
		return errs
	}
	return nil
}

func answerIndexes(n int, at func(int) int) []int {
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = at(i)
	}
	return indexes
}

// ===== SUBMISSION RETRIEVAL =====

func (s *submissionService) GetByID(ctx context.Context, id uint, userID string) (*SubmissionResponse, error) {
	submission, err := s.repo.Submission().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	canEvaluate, err := s.canViewSubmission(ctx, submission, userID)
	if err != nil {
		return nil, err
	}

	return &SubmissionResponse{
		Submission:  submission,
		CanEvaluate: canEvaluate && submission.Status == models.SubmissionPending,
	}, nil
}

func (s *submissionService) ListByLearner(ctx context.Context, learnerID string, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	if learnerID != userID {
		evaluator, err := s.isEvaluator(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !evaluator {
			return nil, NewPermissionError("submission", "list", "learners can only list their own submissions")
		}
	}

	filters.LearnerID = &learnerID
	submissions, total, err := s.repo.Submission().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return s.buildListResponse(ctx, submissions, total, filters.Limit, filters.Offset, userID)
}

func (s *submissionService) ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	evaluator, err := s.isEvaluator(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !evaluator {
		return nil, NewPermissionError("submission", "list", "only trainers and admins can list submissions by exam")
	}

	exists, err := s.repo.Exam().ExistsByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	filters.ExamID = &examID
	submissions, total, err := s.repo.Submission().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return s.buildListResponse(ctx, submissions, total, filters.Limit, filters.Offset, userID)
}

// ===== HELPERS =====

func (s *submissionService) buildListResponse(ctx context.Context, submissions []*models.Submission, total int64, limit, offset int, userID string) (*SubmissionListResponse, error) {
	evaluator, err := s.isEvaluator(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*SubmissionResponse, len(submissions))
	for i, sub := range submissions {
		responses[i] = &SubmissionResponse{
			Submission:  sub,
			CanEvaluate: evaluator && sub.Status == models.SubmissionPending,
		}
	}

	page := 1
	size := limit
	if size <= 0 {
		size = len(submissions)
	} else {
		page = offset/size + 1
	}

	return &SubmissionListResponse{
		Submissions: responses,
		Total:       total,
		Page:        page,
		Size:        size,
	}, nil
}

// canViewSubmission allows the owning learner, trainers and admins.
// Returns whether the viewer holds an evaluator role.
func (s *submissionService) canViewSubmission(ctx context.Context, submission *models.Submission, userID string) (bool, error) {
	if submission.LearnerID == userID {
		return false, nil
	}

	evaluator, err := s.isEvaluator(ctx, userID)
	if err != nil {
		return false, err
	}
	if !evaluator {
		return false, NewPermissionError("submission", "view", "not the submission owner")
	}
	return true, nil
}

func (s *submissionService) isEvaluator(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role.CanEvaluate(), nil
}

// ===== EVENT PUBLISHING =====

func (s *submissionService) publishCreated(ctx context.Context, submission *models.Submission) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventSubmissionCreated, events.SubmissionCreatedData{
		SubmissionID:   submission.ID,
		ExamID:         submission.ExamID,
		LearnerID:      submission.LearnerID,
		SubmissionType: submission.SubmissionType,
		Status:         submission.Status,
		SubmittedAt:    submission.SubmittedAt,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish submission created event",
			"submission_id", submission.ID, "error", err)
	}
}

func (s *submissionService) publishEvaluated(ctx context.Context, submission *models.Submission) {
	if s.publisher == nil || submission.Score == nil || submission.EvaluatedAt == nil {
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
