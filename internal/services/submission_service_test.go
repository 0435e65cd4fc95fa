package services

import (
	"context"
	"errors"
	"testing"

	"github.com/brightpath-edu/exam-service/internal/events"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
)

func newSubmissionService(t *testing.T) (SubmissionService, *testRepository, *events.MockEventPublisher) {
	t.Helper()
	repo := newTestRepository(t)
	publisher := events.NewMockEventPublisher()
	svc := NewSubmissionService(repo.db, repo, newTestLogger(), validator.New(), publisher)
	return svc, repo, publisher
}

func TestSubmissionService_Create_MCQ(t *testing.T) {
	svc, repo, publisher := newSubmissionService(t)
	exam := seedMCQExam(t, repo)
	ctx := context.Background()

	// Correct options are 0, 1, 0; this answers two of them right.
	req := &CreateSubmissionRequest{
		ExamID:         exam.ID,
		SubmissionType: models.SubmissionMCQ,
		Answers: mustJSON(t, []models.MCQAnswer{
			{QuestionIndex: 0, SelectedOption: 0},
			{QuestionIndex: 1, SelectedOption: 1},
			{QuestionIndex: 2, SelectedOption: 2},
		}),
	}

	resp, err := svc.Create(ctx, req, testLearnerID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if resp.Status != models.SubmissionEvaluated {
		t.Errorf("Status = %s, want evaluated", resp.Status)
	}
	if resp.Score == nil || *resp.Score != 2 {
		t.Errorf("Score = %v, want 2", resp.Score)
	}
	if resp.EvaluatedBy != nil {
		t.Errorf("EvaluatedBy = %v, want nil for auto-scored", *resp.EvaluatedBy)
	}
	if resp.EvaluatedAt == nil {
		t.Error("EvaluatedAt should be set for auto-scored submission")
	}

	// Auto-scored submissions never enter the pending queue
	stored, err := repo.Submission().GetByID(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != models.SubmissionEvaluated {
		t.Errorf("stored status = %s, want evaluated", stored.Status)
	}

	if got := len(publisher.GetEventsByType(events.EventSubmissionCreated)); got != 1 {
		t.Errorf("submission.created events = %d, want 1", got)
	}
	if got := len(publisher.GetEventsByType(events.EventSubmissionEvaluated)); got != 1 {
		t.Errorf("submission.evaluated events = %d, want 1", got)
	}
}

func TestSubmissionService_Create_Descriptive(t *testing.T) {
	svc, repo, publisher := newSubmissionService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	req := &CreateSubmissionRequest{
		ExamID:         exam.ID,
		SubmissionType: models.SubmissionDescriptive,
		Answers: mustJSON(t, []models.DescriptiveAnswer{
			{QuestionIndex: 0, Text: "Goroutines are lightweight threads"},
			{QuestionIndex: 1, Text: "Channels synchronize goroutines"},
		}),
	}

	resp, err := svc.Create(ctx, req, testLearnerID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if resp.Status != models.SubmissionPending {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	if resp.Score != nil || resp.Evaluation != nil || resp.EvaluatedBy != nil || resp.EvaluatedAt != nil {
		t.Error("evaluation fields must be nil while pending")
	}

	if got := len(publisher.GetEventsByType(events.EventSubmissionEvaluated)); got != 0 {
		t.Errorf("submission.evaluated events = %d, want 0", got)
	}
}

func TestSubmissionService_Create_Voice(t *testing.T) {
	svc, repo, publisher := newSubmissionService(t)
	exam := seedVoiceExam(t, repo)
	ctx := context.Background()

	duration := 45
	req := &CreateSubmissionRequest{
		ExamID:         exam.ID,
		SubmissionType: models.SubmissionVoice,
		Answers: mustJSON(t, []models.VoiceAnswer{
			{QuestionIndex: 0, RecordingURL: "https://media.example.com/rec-1.ogg", DurationSeconds: &duration},
			{QuestionIndex: 1, RecordingURL: "https://media.example.com/rec-2.ogg", DurationSeconds: &duration},
		}),
	}

	resp, err := svc.Create(ctx, req, testLearnerID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if resp.Status != models.SubmissionPending {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	if resp.Score != nil || resp.Evaluation != nil || resp.EvaluatedBy != nil || resp.EvaluatedAt != nil {
		t.Error("evaluation fields must be nil while pending")
	}

	if got := len(publisher.GetEventsByType(events.EventSubmissionCreated)); got != 1 {
		t.Errorf("submission.created events = %d, want 1", got)
	}
	if got := len(publisher.GetEventsByType(events.EventSubmissionEvaluated)); got != 0 {
		t.Errorf("submission.evaluated events = %d, want 0", got)
	}
}

func TestSubmissionService_Create_Voice_RecordingValidation(t *testing.T) {
	svc, repo, _ := newSubmissionService(t)
	exam := seedVoiceExam(t, repo)
	ctx := context.Background()

	negative := -5
	zero := 0

	tests := []struct {
		name    string
		answers interface{}
	}{
		{
			name:    "negative duration",
			answers: []models.VoiceAnswer{{QuestionIndex: 0, RecordingURL: "https://media.example.com/rec.ogg", DurationSeconds: &negative}},
		},
		{
			name:    "zero duration",
			answers: []models.VoiceAnswer{{QuestionIndex: 0, RecordingURL: "https://media.example.com/rec.ogg", DurationSeconds: &zero}},
		},
		{
			name:    "missing duration",
			answers: []models.VoiceAnswer{{QuestionIndex: 0, RecordingURL: "https://media.example.com/rec.ogg"}},
		},
		{
			name:    "missing recording url",
			answers: []map[string]interface{}{{"question_index": 0, "duration_seconds": 45}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &CreateSubmissionRequest{
				ExamID:         exam.ID,
				SubmissionType: models.SubmissionVoice,
				Answers:        mustJSON(t, tt.answers),
			}

			_, err := svc.Create(ctx, req, testLearnerID)
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error = %v, want ValidationErrors", err)
			}
		})
	}
}

func TestSubmissionService_Create_Errors(t *testing.T) {
	svc, repo, _ := newSubmissionService(t)
	ctx := context.Background()

	mcqExam := seedMCQExam(t, repo)

	draft := seedDescriptiveExam(t, repo)
	if err := repo.Exam().UpdateStatus(ctx, draft.ID, models.ExamDraft); err != nil {
		t.Fatalf("failed to unpublish exam: %v", err)
	}

	validAnswers := mustJSON(t, []models.MCQAnswer{{QuestionIndex: 0, SelectedOption: 0}})

	tests := []struct {
		name  string
		req   *CreateSubmissionRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "exam not found",
			req:  &CreateSubmissionRequest{ExamID: 9999, SubmissionType: models.SubmissionMCQ, Answers: validAnswers},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrExamNotFound) {
					t.Errorf("error = %v, want ErrExamNotFound", err)
				}
			},
		},
		{
			name: "exam not published",
			req:  &CreateSubmissionRequest{ExamID: draft.ID, SubmissionType: models.SubmissionDescriptive, Answers: mustJSON(t, []models.DescriptiveAnswer{{QuestionIndex: 0, Text: "x"}})},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrExamNotPublished) {
					t.Errorf("error = %v, want ErrExamNotPublished", err)
				}
			},
		},
		{
			name: "submission type mismatch",
			req:  &CreateSubmissionRequest{ExamID: mcqExam.ID, SubmissionType: models.SubmissionDescriptive, Answers: mustJSON(t, []models.DescriptiveAnswer{{QuestionIndex: 0, Text: "x"}})},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("error = %v, want ValidationErrors", err)
				}
			},
		},
		{
			name: "answer index out of range",
			req: &CreateSubmissionRequest{ExamID: mcqExam.ID, SubmissionType: models.SubmissionMCQ,
				Answers: mustJSON(t, []models.MCQAnswer{{QuestionIndex: 7, SelectedOption: 0}})},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("error = %v, want ValidationErrors", err)
				}
			},
		},
		{
			name: "duplicate answer index",
			req: &CreateSubmissionRequest{ExamID: mcqExam.ID, SubmissionType: models.SubmissionMCQ,
				Answers: mustJSON(t, []models.MCQAnswer{
					{QuestionIndex: 0, SelectedOption: 0},
					{QuestionIndex: 0, SelectedOption: 1},
				})},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("error = %v, want ValidationErrors", err)
				}
			},
		},
		{
			name: "selected option out of range",
			req: &CreateSubmissionRequest{ExamID: mcqExam.ID, SubmissionType: models.SubmissionMCQ,
				Answers: mustJSON(t, []models.MCQAnswer{{QuestionIndex: 0, SelectedOption: 9}})},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("error = %v, want ValidationErrors", err)
				}
			},
		},
		{
			name: "malformed answers payload",
			req:  &CreateSubmissionRequest{ExamID: mcqExam.ID, SubmissionType: models.SubmissionMCQ, Answers: mustJSON(t, map[string]string{"not": "an array"})},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("error = %v, want ValidationErrors", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req, testLearnerID)
			if err == nil {
				t.Fatal("Create() expected error, got nil")
			}
			tt.check(t, err)
		})
	}
}

func TestSubmissionService_GetByID_Permissions(t *testing.T) {
	svc, repo, _ := newSubmissionService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	sub := seedPendingSubmission(t, repo, exam.ID, testLearnerID, exam.CreatedAt)

	t.Run("owner can view", func(t *testing.T) {
		resp, err := svc.GetByID(ctx, sub.ID, testLearnerID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if resp.CanEvaluate {
			t.Error("CanEvaluate = true for the owning learner")
		}
	})

	t.Run("trainer can view pending", func(t *testing.T) {
		resp, err := svc.GetByID(ctx, sub.ID, testTrainerID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !resp.CanEvaluate {
			t.Error("CanEvaluate = false for a trainer on a pending submission")
		}
	})

	t.Run("other learner is rejected", func(t *testing.T) {
		_, err := svc.GetByID(ctx, sub.ID, "learner-2")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown submission", func(t *testing.T) {
		_, err := svc.GetByID(ctx, 9999, testLearnerID)
		if !errors.Is(err, ErrSubmissionNotFound) {
			t.Errorf("error = %v, want ErrSubmissionNotFound", err)
		}
	})
}

func TestSubmissionService_ListByLearner(t *testing.T) {
	svc, repo, _ := newSubmissionService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	seedPendingSubmission(t, repo, exam.ID, testLearnerID, exam.CreatedAt)
	seedPendingSubmission(t, repo, exam.ID, "learner-2", exam.CreatedAt)

	resp, err := svc.ListByLearner(ctx, testLearnerID, repositories.SubmissionFilters{}, testLearnerID)
	if err != nil {
		t.Fatalf("ListByLearner() error = %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Total = %d, want 1", resp.Total)
	}

	// A learner cannot browse another learner's submissions
	_, err = svc.ListByLearner(ctx, "learner-2", repositories.SubmissionFilters{}, testLearnerID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}

	// Trainers can
	resp, err = svc.ListByLearner(ctx, "learner-2", repositories.SubmissionFilters{}, testTrainerID)
	if err != nil {
		t.Fatalf("ListByLearner() as trainer error = %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Total = %d, want 1", resp.Total)
	}
}

func TestSubmissionService_ListByExam(t *testing.T) {
	svc, repo, _ := newSubmissionService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	seedPendingSubmission(t, repo, exam.ID, testLearnerID, exam.CreatedAt)
	seedPendingSubmission(t, repo, exam.ID, "learner-2", exam.CreatedAt)

	resp, err := svc.ListByExam(ctx, exam.ID, repositories.SubmissionFilters{}, testTrainerID)
	if err != nil {
		t.Fatalf("ListByExam() error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}

	_, err = svc.ListByExam(ctx, exam.ID, repositories.SubmissionFilters{}, testLearnerID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}

	_, err = svc.ListByExam(ctx, 9999, repositories.SubmissionFilters{}, testTrainerID)
	if !errors.Is(err, ErrExamNotFound) {
		t.Errorf("error = %v, want ErrExamNotFound", err)
	}
}
