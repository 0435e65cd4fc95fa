package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/brightpath-edu/exam-service/internal/cache"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	if err := s.db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ID, submission.ExamID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	var submissions []*models.Submission
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Submission{})
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("submitted_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

// ListPending is the evaluation queue: pending only, FIFO by submitted_at.
func (s *SubmissionPostgreSQL) ListPending(ctx context.Context, filters repositories.PendingQueueFilters) ([]*models.Submission, int64, error) {
	var submissions []*models.Submission
	var total int64

	query := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("status = ?", models.SubmissionPending)

	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.SubmissionType != nil {
		query = query.Where("submission_type = ?", *filters.SubmissionType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("submitted_at ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

// MarkEvaluated performs the pending -> evaluated transition as a single
// conditional update. The status guard in the WHERE clause makes a
// concurrent second evaluation lose with RowsAffected == 0; an already
// evaluated submission is never mutated.
func (s *SubmissionPostgreSQL) MarkEvaluated(ctx context.Context, id uint, score int, evaluation string, evaluatorID *string, evaluatedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionPending).
		Updates(map[string]interface{}{
			"status":       models.SubmissionEvaluated,
			"score":        score,
			"evaluation":   evaluation,
			"evaluated_by": evaluatorID,
			"evaluated_at": evaluatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark submission evaluated: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	cache.SafeDelete(ctx, s.cacheManager.Submission, fmt.Sprintf("id:%d", id))
	cache.SafeInvalidatePattern(ctx, s.cacheManager.Submission, "queue:*")
	cache.SafeInvalidatePattern(ctx, s.cacheManager.Stats, "*")
	return true, nil
}

func (s *SubmissionPostgreSQL) ListEvaluatedByExam(ctx context.Context, examID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := s.db.WithContext(ctx).
		Where("exam_id = ? AND status = ?", examID, models.SubmissionEvaluated).
		Order("evaluated_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list evaluated submissions: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionPostgreSQL) GetExamStats(ctx context.Context, examID uint) (*repositories.ExamStats, error) {
	cacheKey := fmt.Sprintf("exam:%d:stats", examID)
	var stats repositories.ExamStats

	err := s.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var dbStats repositories.ExamStats

		if err := s.db.WithContext(ctx).
			Model(&models.Submission{}).
			Where("exam_id = ?", examID).
			Count(&dbStats.TotalSubmissions).Error; err != nil {
			return nil, err
		}

		if err := s.db.WithContext(ctx).
			Model(&models.Submission{}).
			Where("exam_id = ? AND status = ?", examID, models.SubmissionPending).
			Count(&dbStats.PendingSubmissions).Error; err != nil {
			return nil, err
		}
		dbStats.EvaluatedSubmissions = dbStats.TotalSubmissions - dbStats.PendingSubmissions

		if dbStats.EvaluatedSubmissions > 0 {
			row := s.db.WithContext(ctx).
				Model(&models.Submission{}).
				Where("exam_id = ? AND status = ?", examID, models.SubmissionEvaluated).
				Select("COALESCE(AVG(score), 0), COALESCE(MAX(score), 0), COALESCE(MIN(score), 0)").
				Row()
			if err := row.Scan(&dbStats.AverageScore, &dbStats.HighestScore, &dbStats.LowestScore); err != nil {
				return nil, err
			}
		}

		return &dbStats, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *SubmissionPostgreSQL) GetQueueStats(ctx context.Context) (*repositories.QueueStats, error) {
	stats := &repositories.QueueStats{
		ByType: make(map[models.SubmissionType]int64),
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("status = ?", models.SubmissionPending).
		Count(&stats.TotalPending).Error; err != nil {
		return nil, err
	}

	type typeCount struct {
		SubmissionType models.SubmissionType
		Count          int64
	}
	var counts []typeCount
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("status = ?", models.SubmissionPending).
		Select("submission_type, COUNT(*) as count").
		Group("submission_type").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByType[c.SubmissionType] = c.Count
	}

	if stats.TotalPending > 0 {
		var oldest time.Time
		if err := s.db.WithContext(ctx).
			Model(&models.Submission{}).
			Where("status = ?", models.SubmissionPending).
			Select("MIN(submitted_at)").
			Row().Scan(&oldest); err == nil {
			stats.OldestWaiting = &oldest
		}
	}

	return stats, nil
}

func (s *SubmissionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SubmissionFilters) *gorm.DB {
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.LearnerID != nil {
		query = query.Where("learner_id = ?", *filters.LearnerID)
	}
	if filters.SubmissionType != nil {
		query = query.Where("submission_type = ?", *filters.SubmissionType)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}
	return query
}
