package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brightpath-edu/exam-service/internal/events"
	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/validator"
)

func newEvaluationService(t *testing.T) (EvaluationService, *testRepository, *events.MockEventPublisher) {
	t.Helper()
	repo := newTestRepository(t)
	publisher := events.NewMockEventPublisher()
	svc := NewEvaluationService(repo.db, repo, newTestLogger(), validator.New(), publisher)
	return svc, repo, publisher
}

func TestEvaluationService_PendingQueue(t *testing.T) {
	svc, repo, _ := newEvaluationService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	second := seedPendingSubmission(t, repo, exam.ID, "learner-2", base.Add(10*time.Minute))
	first := seedPendingSubmission(t, repo, exam.ID, testLearnerID, base)
	third := seedPendingSubmission(t, repo, exam.ID, "learner-3", base.Add(20*time.Minute))

	// Evaluated submissions must never appear in the queue
	if _, err := repo.Submission().MarkEvaluated(ctx, third.ID, 5, "good", nil, time.Now()); err != nil {
		t.Fatalf("MarkEvaluated() error = %v", err)
	}

	resp, err := svc.PendingQueue(ctx, repositories.PendingQueueFilters{}, testTrainerID)
	if err != nil {
		t.Fatalf("PendingQueue() error = %v", err)
	}

	if resp.Total != 2 {
		t.Fatalf("Total = %d, want 2", resp.Total)
	}
	if resp.Submissions[0].ID != first.ID {
		t.Errorf("queue[0] = %d, want oldest submission %d", resp.Submissions[0].ID, first.ID)
	}
	if resp.Submissions[1].ID != second.ID {
		t.Errorf("queue[1] = %d, want %d", resp.Submissions[1].ID, second.ID)
	}

	t.Run("learner is rejected", func(t *testing.T) {
		_, err := svc.PendingQueue(ctx, repositories.PendingQueueFilters{}, testLearnerID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})
}

func TestEvaluationService_PendingQueue_VoiceFilter(t *testing.T) {
	svc, repo, _ := newEvaluationService(t)
	ctx := context.Background()

	descriptiveExam := seedDescriptiveExam(t, repo)
	voiceExam := seedVoiceExam(t, repo)

	base := time.Now().Add(-time.Hour)
	seedPendingSubmission(t, repo, descriptiveExam.ID, testLearnerID, base)
	voiceKept := seedPendingVoiceSubmission(t, repo, voiceExam.ID, "learner-2", base.Add(5*time.Minute))
	voiceDone := seedPendingVoiceSubmission(t, repo, voiceExam.ID, "learner-3", base.Add(10*time.Minute))

	if _, err := repo.Submission().MarkEvaluated(ctx, voiceDone.ID, 4, "clear delivery", nil, time.Now()); err != nil {
		t.Fatalf("MarkEvaluated() error = %v", err)
	}

	voiceType := models.SubmissionVoice
	resp, err := svc.PendingQueue(ctx, repositories.PendingQueueFilters{SubmissionType: &voiceType}, testTrainerID)
	if err != nil {
		t.Fatalf("PendingQueue() error = %v", err)
	}

	if resp.Total != 1 {
		t.Fatalf("Total = %d, want 1", resp.Total)
	}
	if resp.Submissions[0].ID != voiceKept.ID {
		t.Errorf("queue[0] = %d, want %d", resp.Submissions[0].ID, voiceKept.ID)
	}
	for _, sub := range resp.Submissions {
		if sub.SubmissionType != models.SubmissionVoice {
			t.Errorf("submission %d type = %s, want voice", sub.ID, sub.SubmissionType)
		}
		if sub.Status != models.SubmissionPending {
			t.Errorf("submission %d status = %s, want pending", sub.ID, sub.Status)
		}
	}
}

func TestEvaluationService_RecordEvaluation(t *testing.T) {
	svc, repo, publisher := newEvaluationService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	sub := seedPendingSubmission(t, repo, exam.ID, testLearnerID, time.Now())

	req := &RecordEvaluationRequest{Score: 8, Evaluation: "Solid understanding, minor gaps on channels"}
	resp, err := svc.RecordEvaluation(ctx, sub.ID, req, testTrainerID)
	if err != nil {
		t.Fatalf("RecordEvaluation() error = %v", err)
	}

	if resp.Status != models.SubmissionEvaluated {
		t.Errorf("Status = %s, want evaluated", resp.Status)
	}
	if resp.Score == nil || *resp.Score != 8 {
		t.Errorf("Score = %v, want 8", resp.Score)
	}
	if resp.EvaluatedBy == nil || *resp.EvaluatedBy != testTrainerID {
		t.Errorf("EvaluatedBy = %v, want %s", resp.EvaluatedBy, testTrainerID)
	}

	if got := len(publisher.GetEventsByType(events.EventSubmissionEvaluated)); got != 1 {
		t.Errorf("submission.evaluated events = %d, want 1", got)
	}

	t.Run("second evaluation is rejected", func(t *testing.T) {
		_, err := svc.RecordEvaluation(ctx, sub.ID, &RecordEvaluationRequest{Score: 3, Evaluation: "late pass"}, testAdminID)
		if !errors.Is(err, ErrAlreadyEvaluated) {
			t.Errorf("error = %v, want ErrAlreadyEvaluated", err)
		}

		// First evaluation must be untouched
		stored, err := repo.Submission().GetByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if stored.Score == nil || *stored.Score != 8 {
			t.Errorf("stored score = %v, want 8", stored.Score)
		}
		if stored.EvaluatedBy == nil || *stored.EvaluatedBy != testTrainerID {
			t.Errorf("stored evaluator = %v, want %s", stored.EvaluatedBy, testTrainerID)
		}
	})
}

func TestEvaluationService_RecordEvaluation_Errors(t *testing.T) {
	svc, repo, _ := newEvaluationService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	sub := seedPendingSubmission(t, repo, exam.ID, testLearnerID, time.Now())

	t.Run("score above max marks", func(t *testing.T) {
		_, err := svc.RecordEvaluation(ctx, sub.ID, &RecordEvaluationRequest{Score: exam.TotalMaxMarks + 1, Evaluation: "x"}, testTrainerID)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("error = %v, want ValidationErrors", err)
		}

		// Rejected evaluation must not mutate the submission
		stored, err := repo.Submission().GetByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if stored.Status != models.SubmissionPending {
			t.Errorf("stored status = %s, want pending", stored.Status)
		}
		if stored.Score != nil {
			t.Errorf("stored score = %v, want nil", stored.Score)
		}
	})

	t.Run("learner cannot evaluate", func(t *testing.T) {
		_, err := svc.RecordEvaluation(ctx, sub.ID, &RecordEvaluationRequest{Score: 5, Evaluation: "x"}, testLearnerID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown submission", func(t *testing.T) {
		_, err := svc.RecordEvaluation(ctx, 9999, &RecordEvaluationRequest{Score: 5, Evaluation: "x"}, testTrainerID)
		if !errors.Is(err, ErrSubmissionNotFound) {
			t.Errorf("error = %v, want ErrSubmissionNotFound", err)
		}
	})

	t.Run("missing evaluation text", func(t *testing.T) {
		_, err := svc.RecordEvaluation(ctx, sub.ID, &RecordEvaluationRequest{Score: 5}, testTrainerID)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("error = %v, want ValidationErrors", err)
		}
	})
}

func TestEvaluationService_RecordEvaluation_Concurrent(t *testing.T) {
	svc, repo, _ := newEvaluationService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	sub := seedPendingSubmission(t, repo, exam.ID, testLearnerID, time.Now())

	evaluators := []string{testTrainerID, testAdminID}
	errs := make([]error, len(evaluators))

	var wg sync.WaitGroup
	for i, evaluatorID := range evaluators {
		wg.Add(1)
		go func(i int, evaluatorID string) {
			defer wg.Done()
			_, errs[i] = svc.RecordEvaluation(ctx, sub.ID, &RecordEvaluationRequest{Score: i + 1, Evaluation: "race"}, evaluatorID)
		}(i, evaluatorID)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadyEvaluated):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestEvaluationService_GetQueueStats(t *testing.T) {
	svc, repo, _ := newEvaluationService(t)
	exam := seedDescriptiveExam(t, repo)
	ctx := context.Background()

	seedPendingSubmission(t, repo, exam.ID, testLearnerID, time.Now().Add(-time.Hour))
	seedPendingSubmission(t, repo, exam.ID, "learner-2", time.Now())

	stats, err := svc.GetQueueStats(ctx, testTrainerID)
	if err != nil {
		t.Fatalf("GetQueueStats() error = %v", err)
	}
	if stats.TotalPending != 2 {
		t.Errorf("TotalPending = %d, want 2", stats.TotalPending)
	}
	if stats.ByType[models.SubmissionDescriptive] != 2 {
		t.Errorf("ByType[descriptive] = %d, want 2", stats.ByType[models.SubmissionDescriptive])
	}
	if stats.OldestWaiting == nil {
		t.Error("OldestWaiting should be set")
	}

	_, err = svc.GetQueueStats(ctx, testLearnerID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}
