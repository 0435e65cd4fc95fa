package services

import (
	"encoding/json"
	"testing"

	"github.com/brightpath-edu/exam-service/internal/models"
	"gorm.io/datatypes"
)

func mcqQuestion(t *testing.T, correct int) models.ExamQuestion {
	t.Helper()
	content, err := json.Marshal(models.MCQContent{Options: []string{"a", "b", "c"}, CorrectOption: correct})
	if err != nil {
		t.Fatalf("failed to marshal content: %v", err)
	}
	return models.ExamQuestion{Type: models.ExamTypeMCQ, Content: datatypes.JSON(content)}
}

func TestScoreMCQAnswers(t *testing.T) {
	questions := []models.ExamQuestion{
		mcqQuestion(t, 0),
		mcqQuestion(t, 1),
		mcqQuestion(t, 0),
	}

	tests := []struct {
		name      string
		answers   []models.MCQAnswer
		wantScore int
	}{
		{
			name: "all correct",
			answers: []models.MCQAnswer{
				{QuestionIndex: 0, SelectedOption: 0},
				{QuestionIndex: 1, SelectedOption: 1},
				{QuestionIndex: 2, SelectedOption: 0},
			},
			wantScore: 3,
		},
		{
			name: "partially correct",
			answers: []models.MCQAnswer{
				{QuestionIndex: 0, SelectedOption: 0},
				{QuestionIndex: 1, SelectedOption: 1},
				{QuestionIndex: 2, SelectedOption: 2},
			},
			wantScore: 2,
		},
		{
			name: "missing answer counts as incorrect",
			answers: []models.MCQAnswer{
				{QuestionIndex: 0, SelectedOption: 0},
			},
			wantScore: 1,
		},
		{
			name:      "no answers",
			answers:   nil,
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ScoreMCQAnswers(questions, tt.answers)
			if err != nil {
				t.Fatalf("ScoreMCQAnswers() error = %v", err)
			}
			if result.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", result.Score, tt.wantScore)
			}
			if result.MaxScore != len(questions) {
				t.Errorf("MaxScore = %d, want %d", result.MaxScore, len(questions))
			}
			if len(result.Breakdown) != len(questions) {
				t.Errorf("Breakdown length = %d, want %d", len(result.Breakdown), len(questions))
			}
		})
	}
}

func TestScoreMCQAnswers_Breakdown(t *testing.T) {
	questions := []models.ExamQuestion{mcqQuestion(t, 2)}

	result, err := ScoreMCQAnswers(questions, []models.MCQAnswer{{QuestionIndex: 0, SelectedOption: 1}})
	if err != nil {
		t.Fatalf("ScoreMCQAnswers() error = %v", err)
	}

	qs := result.Breakdown[0]
	if qs.CorrectOption != 2 {
		t.Errorf("CorrectOption = %d, want 2", qs.CorrectOption)
	}
	if qs.SelectedOption == nil || *qs.SelectedOption != 1 {
		t.Errorf("SelectedOption = %v, want 1", qs.SelectedOption)
	}
	if qs.Correct {
		t.Error("Correct = true, want false")
	}

	// Unanswered question keeps a nil selection
	result, err = ScoreMCQAnswers(questions, nil)
	if err != nil {
		t.Fatalf("ScoreMCQAnswers() error = %v", err)
	}
	if result.Breakdown[0].SelectedOption != nil {
		t.Errorf("SelectedOption = %v, want nil", result.Breakdown[0].SelectedOption)
	}
}
