package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/brightpath-edu/exam-service/internal/events"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type examService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewExamService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ExamService {
	return &examService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(v),
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam",
		"title", req.Title,
		"exam_type", req.ExamType,
		"creator_id", creatorID)

	if errs := s.business.ValidateExamCreate(req); len(errs) > 0 {
		return nil, errs
	}

	exam := &models.Exam{
		Title:         req.Title,
		Description:   req.Description,
		ExamType:      req.ExamType,
		TotalMaxMarks: req.TotalMaxMarks,
		Status:        models.ExamDraft,
		CreatedBy:     creatorID,
		Questions:     make([]models.ExamQuestion, len(req.Questions)),
	}

	for i, q := range req.Questions {
		exam.Questions[i] = models.ExamQuestion{
			Position: i,
			Type:     q.Type,
			Text:     q.Text,
			Content:  datatypes.JSON(q.Content),
		}
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Exam().Create(ctx, exam)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created successfully", "exam_id", exam.ID)

	return s.buildResponse(ctx, exam, creatorID)
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, id, true)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.buildResponse(ctx, exam, userID)
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	isAdmin, err := s.hasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		canManage := isAdmin || exam.CreatedBy == userID
		responses[i] = &ExamResponse{
			Exam:      exam,
			CanEdit:   canManage,
			CanDelete: canManage,
			CanSubmit: exam.Status == models.ExamPublished,
		}
	}

	page := 1
	size := filters.Limit
	if size <= 0 {
		size = len(exams)
	} else {
		page = filters.Offset/size + 1
	}

	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  size,
	}, nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting exam", "exam_id", id, "user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, id, false)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.checkManagePermission(ctx, exam, userID, "delete"); err != nil {
		return err
	}

	hasSubmissions, err := s.repo.Exam().HasSubmissions(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check exam submissions: %w", err)
	}
	if hasSubmissions {
		return NewBusinessRuleError("exam_has_submissions",
			"cannot delete an exam that already has submissions",
			map[string]interface{}{"exam_id": id})
	}

	if err := s.repo.Exam().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted successfully", "exam_id", id)
	return nil
}

// ===== STATUS MANAGEMENT =====

// Publish makes a draft exam available for submissions. An exam needs at
// least one question before it can be published.
func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Publishing exam", "exam_id", id, "user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, id, true)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.checkManagePermission(ctx, exam, userID, "publish"); err != nil {
		return err
	}

	if exam.Status == models.ExamPublished {
		return NewBusinessRuleError("exam_already_published",
			"exam is already published",
			map[string]interface{}{"exam_id": id})
	}

	if exam.QuestionCount() == 0 {
		return NewBusinessRuleError("exam_has_no_questions",
			"cannot publish an exam with no questions",
			map[string]interface{}{"exam_id": id})
	}

	if err := s.repo.Exam().UpdateStatus(ctx, id, models.ExamPublished); err != nil {
		return fmt.Errorf("failed to publish exam: %w", err)
	}

	if s.publisher != nil {
		event := events.NewEvent(events.EventExamPublished, map[string]interface{}{
			"exam_id":      id,
			"published_by": userID,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish exam published event", "exam_id", id, "error", err)
		}
	}

	s.logger.Info("Exam published successfully", "exam_id", id)
	return nil
}

// ===== ADMIN OPERATIONS =====

// UpdateMaxMarks adjusts the total marks of an exam. Admin only. For
// descriptive and voice exams with questions the new total must equal the
// sum of per-question max points after the optional per-question updates
// are applied; the question rewrites and the total land in one transaction.
func (s *examService) UpdateMaxMarks(ctx context.Context, id uint, req *UpdateMaxMarksRequest, adminID string) (*ExamResponse, error) {
	s.logger.Info("Updating exam max marks",
		"exam_id", id,
		"total_max_marks", req.TotalMaxMarks,
		"admin_id", adminID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	isAdmin, err := s.hasRole(ctx, adminID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, NewPermissionError("exam", "update max marks", "requires admin role")
	}

	exam, err := s.repo.Exam().GetByID(ctx, id, true)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	overrides, err := questionPointsOverrides(exam, req.QuestionMaxPoints)
	if err != nil {
		return nil, err
	}

	retargeted := make(map[uint]datatypes.JSON)
	if exam.ExamType != models.ExamTypeMCQ && exam.QuestionCount() > 0 {
		pointsSum := 0
		for i := range exam.Questions {
			q := &exam.Questions[i]
			points, content, err := questionPoints(q, overrides)
			if err != nil {
				return nil, err
			}
			if content != nil {
				retargeted[q.ID] = content
			}
			pointsSum += points
		}
		if pointsSum != req.TotalMaxMarks {
			return nil, NewBusinessRuleError("marks_consistency",
				fmt.Sprintf("total max marks %d does not match question points sum %d", req.TotalMaxMarks, pointsSum),
				map[string]interface{}{"exam_id": id, "points_sum": pointsSum})
		}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for questionID, content := range retargeted {
			if err := txRepo.Exam().UpdateQuestionContent(ctx, id, questionID, content); err != nil {
				return err
			}
		}
		return txRepo.Exam().UpdateMaxMarks(ctx, id, req.TotalMaxMarks)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to update max marks: %w", err)
	}

	exam.TotalMaxMarks = req.TotalMaxMarks
	for i := range exam.Questions {
		if content, ok := retargeted[exam.Questions[i].ID]; ok {
			exam.Questions[i].Content = content
		}
	}

	if s.publisher != nil {
		event := events.NewEvent(events.EventExamMaxMarksUpdated, events.ExamMaxMarksUpdatedData{
			ExamID:        id,
			TotalMaxMarks: req.TotalMaxMarks,
			UpdatedBy:     adminID,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish max marks updated event", "exam_id", id, "error", err)
		}
	}

	s.logger.Info("Exam max marks updated successfully",
		"exam_id", id, "total_max_marks", req.TotalMaxMarks)

	return s.buildResponse(ctx, exam, adminID)
}

// ===== STATISTICS =====

func (s *examService) GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error) {
	exam, err := s.repo.Exam().GetByID(ctx, id, false)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.checkManagePermission(ctx, exam, userID, "view stats"); err != nil {
		// Trainers may see stats for exams they do not own
		evaluator, roleErr := s.hasRole(ctx, userID, models.RoleTrainer)
		if roleErr != nil {
			return nil, roleErr
		}
		if !evaluator {
			return nil, err
		}
	}

	stats, err := s.repo.Submission().GetExamStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *examService) buildResponse(ctx context.Context, exam *models.Exam, userID string) (*ExamResponse, error) {
	isAdmin, err := s.hasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	canManage := isAdmin || exam.CreatedBy == userID
	return &ExamResponse{
		Exam:      exam,
		CanEdit:   canManage,
		CanDelete: canManage,
		CanSubmit: exam.Status == models.ExamPublished,
	}, nil
}

func (s *examService) checkManagePermission(ctx context.Context, exam *models.Exam, userID, action string) error {
	if exam.CreatedBy == userID {
		return nil
	}
	isAdmin, err := s.hasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if !isAdmin {
		return NewPermissionError("exam", action, "not the exam owner")
	}
	return nil
}

func (s *examService) hasRole(ctx context.Context, userID string, role models.UserRole) (bool, error) {
	has, err := s.repo.User().HasRole(ctx, userID, role)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check user role: %w", err)
	}
	return has, nil
}

// questionPointsOverrides builds a position -> max points map from the
// per-question updates of a max marks request. MCQ questions carry no max
// points, so updates are rejected for mcq exams.
func questionPointsOverrides(exam *models.Exam, updates []QuestionMaxPointsUpdate) (map[int]int, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	if exam.ExamType == models.ExamTypeMCQ {
		return nil, NewValidationError("question_max_points", "mcq questions carry no max points")
	}

	overrides := make(map[int]int, len(updates))
	for i, u := range updates {
		if u.QuestionIndex < 0 || u.QuestionIndex >= exam.QuestionCount() {
			return nil, NewValidationError(
				fmt.Sprintf("question_max_points[%d].question_index", i),
				fmt.Sprintf("does not reference a question in the exam (0-%d)", exam.QuestionCount()-1))
		}
		if _, dup := overrides[u.QuestionIndex]; dup {
			return nil, NewValidationError(
				fmt.Sprintf("question_max_points[%d].question_index", i),
				"question updated more than once")
		}
		overrides[u.QuestionIndex] = u.MaxPoints
	}
	return overrides, nil
}

// questionPoints returns a question's max points with any override applied.
// When the override changes the content document, the rewritten document is
// returned alongside; otherwise the content result is nil.
func questionPoints(q *models.ExamQuestion, overrides map[int]int) (int, datatypes.JSON, error) {
	newPoints, hasOverride := overrides[q.Position]

	switch q.Type {
	case models.ExamTypeDescriptive:
		var content models.DescriptiveContent
		if err := json.Unmarshal(q.Content, &content); err != nil {
			return 0, nil, fmt.Errorf("failed to decode question %d content: %w", q.Position, err)
		}
		if !hasOverride {
			return content.MaxPoints, nil, nil
		}
		content.MaxPoints = newPoints
		data, err := json.Marshal(content)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode question %d content: %w", q.Position, err)
		}
		return newPoints, datatypes.JSON(data), nil

	case models.ExamTypeVoice:
		var content models.VoiceContent
		if err := json.Unmarshal(q.Content, &content); err != nil {
			return 0, nil, fmt.Errorf("failed to decode question %d content: %w", q.Position, err)
		}
		if !hasOverride {
			return content.MaxPoints, nil, nil
		}
		content.MaxPoints = newPoints
		data, err := json.Marshal(content)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode question %d content: %w", q.Position, err)
		}
		return newPoints, datatypes.JSON(data), nil
	}

	return 0, nil, nil
}
