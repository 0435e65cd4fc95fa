package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/brightpath-edu/exam-service/internal/cache"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	if err := e.db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint, includeQuestions bool) (*models.Exam, error) {
	if !includeQuestions {
		// Bare exam rows are hot during submission creation, cache them
		cacheKey := fmt.Sprintf("id:%d", id)
		var exam models.Exam

		err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
			var dbExam models.Exam
			if err := e.db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
				return nil, err
			}
			return &dbExam, nil
		})
		if err != nil {
			return nil, err
		}
		return &exam, nil
	}

	var exam models.Exam
	if err := e.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	var total int64

	query := e.db.WithContext(ctx).Model(&models.Exam{})
	query = e.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.applyPaginationAndSort(query, filters)

	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, exam *models.Exam) error {
	if err := e.db.WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID, exam.CreatedBy)
	return nil
}

func (e *ExamPostgreSQL) UpdateMaxMarks(ctx context.Context, id uint, totalMaxMarks int) error {
	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("total_max_marks", totalMaxMarks)
	if result.Error != nil {
		return fmt.Errorf("failed to update max marks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")
	return nil
}

// UpdateQuestionContent rewrites one question's content document. Used by
// max marks adjustments to retarget per-question max points.
func (e *ExamPostgreSQL) UpdateQuestionContent(ctx context.Context, examID, questionID uint, content datatypes.JSON) error {
	result := e.db.WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("id = ? AND exam_id = ?", questionID, examID).
		Update("content", content)
	if result.Error != nil {
		return fmt.Errorf("failed to update question content: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", examID))
	return nil
}

func (e *ExamPostgreSQL) UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) error {
	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update exam status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := e.db.WithContext(ctx).Delete(&models.Exam{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, e.cacheManager.Exam, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")
	return nil
}

func (e *ExamPostgreSQL) ExistsByID(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *ExamPostgreSQL) HasSubmissions(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := e.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("exam_id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *ExamPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ExamType != nil {
		query = query.Where("exam_type = ?", *filters.ExamType)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != "" {
		query = query.Where("title ILIKE ?", "%"+filters.Search+"%")
	}
	return query
}

func (e *ExamPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "title", "created_at", "updated_at":
	default:
		sortBy = "created_at"
	}

	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
