package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type exportService struct {
	db     *gorm.DB
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		db:     db,
		repo:   repo,
		logger: logger,
	}
}

const resultsSheet = "Results"

// ExportExamResults builds an xlsx workbook with one row per evaluated
// submission plus a summary header. Returns the file bytes and a
// suggested filename.
func (s *exportService) ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, string, error) {
	s.logger.Info("Exporting exam results", "exam_id", examID, "user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, examID, false)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrExamNotFound
		}
		return nil, "", fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.checkExportPermission(ctx, exam, userID); err != nil {
		return nil, "", err
	}

	submissions, err := s.repo.Submission().ListEvaluatedByExam(ctx, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list evaluated submissions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), resultsSheet)

	headers := []string{"Submission ID", "Learner ID", "Submission Type", "Score", "Max Marks", "Evaluated By", "Evaluated At", "Submitted At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(resultsSheet, cell, h); err != nil {
			return nil, "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, sub := range submissions {
		values := []interface{}{
			sub.ID,
			sub.LearnerID,
			string(sub.SubmissionType),
			derefInt(sub.Score),
			exam.TotalMaxMarks,
			evaluatorLabel(sub.EvaluatedBy),
			formatTime(sub.EvaluatedAt),
			sub.SubmittedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(resultsSheet, cell, v); err != nil {
				return nil, "", fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.SetColWidth(resultsSheet, "A", "H", 22); err != nil {
		return nil, "", fmt.Errorf("failed to set column widths: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("exam-%d-results-%s.xlsx", examID, time.Now().Format("2006-01-02"))

	s.logger.Info("Exam results exported",
		"exam_id", examID,
		"rows", len(submissions))

	return buf.Bytes(), filename, nil
}

func (s *exportService) checkExportPermission(ctx context.Context, exam *models.Exam, userID string) error {
	if exam.CreatedBy == userID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return NewPermissionError("exam results", "export", "user not found")
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Role.CanEvaluate() {
		return NewPermissionError("exam results", "export", "requires trainer or admin role")
	}
	return nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func evaluatorLabel(evaluatedBy *string) string {
	if evaluatedBy == nil {
		return "system"
	}
	return *evaluatedBy
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
