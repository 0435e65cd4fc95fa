package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/repositories/postgres"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testRepository wires the real exam and submission repositories over an
// in-memory sqlite database, with a stub user repository.
type testRepository struct {
	db         *gorm.DB
	exam       repositories.ExamRepository
	submission repositories.SubmissionRepository
	user       repositories.UserRepository
}

func (r *testRepository) Exam() repositories.ExamRepository             { return r.exam }
func (r *testRepository) Submission() repositories.SubmissionRepository { return r.submission }
func (r *testRepository) User() repositories.UserRepository             { return r.user }

func (r *testRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &testRepository{
			db:         tx,
			exam:       postgres.NewExamPostgreSQL(tx, nil),
			submission: postgres.NewSubmissionPostgreSQL(tx, nil),
			user:       r.user,
		}
		return fn(txRepo)
	})
}

func (r *testRepository) Ping(ctx context.Context) error { return nil }
func (r *testRepository) Close() error                   { return nil }

// stubUserRepo serves a fixed set of users keyed by ID.
type stubUserRepo struct {
	users map[string]*models.User
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubUserRepo) List(_ context.Context, _ repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (s *stubUserRepo) Search(ctx context.Context, _ string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return s.List(ctx, filters)
}

func (s *stubUserRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := s.users[id]
	return ok, nil
}

func (s *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *stubUserRepo) HasRole(_ context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := s.users[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	return u.Role == role, nil
}

const (
	testLearnerID = "learner-1"
	testTrainerID = "trainer-1"
	testAdminID   = "admin-1"
)

func newTestRepository(t *testing.T) *testRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Single connection keeps concurrent sqlite writes serialized
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Exam{}, &models.ExamQuestion{}, &models.Submission{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	users := map[string]*models.User{
		testLearnerID: {ID: testLearnerID, FullName: "Lena Learner", Email: "lena@example.com", Role: models.RoleLearner},
		testTrainerID: {ID: testTrainerID, FullName: "Tom Trainer", Email: "tom@example.com", Role: models.RoleTrainer},
		testAdminID:   {ID: testAdminID, FullName: "Ada Admin", Email: "ada@example.com", Role: models.RoleAdmin},
	}

	return &testRepository{
		db:         db,
		exam:       postgres.NewExamPostgreSQL(db, nil),
		submission: postgres.NewSubmissionPostgreSQL(db, nil),
		user:       &stubUserRepo{users: users},
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return data
}

// seedMCQExam creates a published mcq exam with three questions whose
// correct options are 0, 1 and 0.
func seedMCQExam(t *testing.T, repo *testRepository) *models.Exam {
	t.Helper()

	correct := []int{0, 1, 0}
	exam := &models.Exam{
		Title:         "Go Basics",
		ExamType:      models.ExamTypeMCQ,
		TotalMaxMarks: len(correct),
		Status:        models.ExamPublished,
		CreatedBy:     testTrainerID,
	}
	for i, c := range correct {
		exam.Questions = append(exam.Questions, models.ExamQuestion{
			Position: i,
			Type:     models.ExamTypeMCQ,
			Text:     fmt.Sprintf("Question %d", i+1),
			Content:  datatypes.JSON(mustJSON(t, models.MCQContent{Options: []string{"a", "b", "c"}, CorrectOption: c})),
		})
	}
	if err := repo.Exam().Create(context.Background(), exam); err != nil {
		t.Fatalf("failed to seed mcq exam: %v", err)
	}
	return exam
}

// seedDescriptiveExam creates a published descriptive exam with two
// questions worth 6 and 4 points.
func seedDescriptiveExam(t *testing.T, repo *testRepository) *models.Exam {
	t.Helper()

	exam := &models.Exam{
		Title:         "Essay Round",
		ExamType:      models.ExamTypeDescriptive,
		TotalMaxMarks: 10,
		Status:        models.ExamPublished,
		CreatedBy:     testTrainerID,
		Questions: []models.ExamQuestion{
			{Position: 0, Type: models.ExamTypeDescriptive, Text: "Explain goroutines", Content: datatypes.JSON(mustJSON(t, models.DescriptiveContent{MaxPoints: 6}))},
			{Position: 1, Type: models.ExamTypeDescriptive, Text: "Explain channels", Content: datatypes.JSON(mustJSON(t, models.DescriptiveContent{MaxPoints: 4}))},
		},
	}
	if err := repo.Exam().Create(context.Background(), exam); err != nil {
		t.Fatalf("failed to seed descriptive exam: %v", err)
	}
	return exam
}

// seedVoiceExam creates a published voice exam with two questions worth
// 3 and 2 points.
func seedVoiceExam(t *testing.T, repo *testRepository) *models.Exam {
	t.Helper()

	exam := &models.Exam{
		Title:         "Spoken English",
		ExamType:      models.ExamTypeVoice,
		TotalMaxMarks: 5,
		Status:        models.ExamPublished,
		CreatedBy:     testTrainerID,
		Questions: []models.ExamQuestion{
			{Position: 0, Type: models.ExamTypeVoice, Text: "Introduce yourself", Content: datatypes.JSON(mustJSON(t, models.VoiceContent{MaxPoints: 3}))},
			{Position: 1, Type: models.ExamTypeVoice, Text: "Describe your week", Content: datatypes.JSON(mustJSON(t, models.VoiceContent{MaxPoints: 2}))},
		},
	}
	if err := repo.Exam().Create(context.Background(), exam); err != nil {
		t.Fatalf("failed to seed voice exam: %v", err)
	}
	return exam
}

// seedPendingSubmission creates a pending descriptive submission for the
// given exam, submitted at the given time.
func seedPendingSubmission(t *testing.T, repo *testRepository, examID uint, learnerID string, submittedAt time.Time) *models.Submission {
	t.Helper()

	sub := &models.Submission{
		ExamID:         examID,
		LearnerID:      learnerID,
		SubmissionType: models.SubmissionDescriptive,
		Status:         models.SubmissionPending,
		Answers:        datatypes.JSON(mustJSON(t, []models.DescriptiveAnswer{{QuestionIndex: 0, Text: "An answer"}})),
		SubmittedAt:    submittedAt,
	}
	if err := repo.Submission().Create(context.Background(), sub); err != nil {
		t.Fatalf("failed to seed submission: %v", err)
	}
	return sub
}

// seedPendingVoiceSubmission creates a pending voice submission for the
// given exam, submitted at the given time.
func seedPendingVoiceSubmission(t *testing.T, repo *testRepository, examID uint, learnerID string, submittedAt time.Time) *models.Submission {
	t.Helper()

	duration := 30
	sub := &models.Submission{
		ExamID:         examID,
		LearnerID:      learnerID,
		SubmissionType: models.SubmissionVoice,
		Status:         models.SubmissionPending,
		Answers:        datatypes.JSON(mustJSON(t, []models.VoiceAnswer{{QuestionIndex: 0, RecordingURL: "https://media.example.com/rec.ogg", DurationSeconds: &duration}})),
		SubmittedAt:    submittedAt,
	}
	if err := repo.Submission().Create(context.Background(), sub); err != nil {
		t.Fatalf("failed to seed voice submission: %v", err)
	}
	return sub
}
