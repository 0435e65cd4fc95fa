package services

import (
	"encoding/json"
	"fmt"

	"github.com/brightpath-edu/exam-service/internal/models"
)

// ScoreMCQAnswers scores a set of mcq answers against the exam's
// questions. One point per correctly selected option. Questions with no
// answer count as incorrect, never as an error.
func ScoreMCQAnswers(questions []models.ExamQuestion, answers []models.MCQAnswer) (*ScoringResult, error) {
	answerByIndex := make(map[int]models.MCQAnswer, len(answers))
	for _, a := range answers {
		answerByIndex[a.QuestionIndex] = a
	}

	result := &ScoringResult{
		MaxScore:  len(questions),
		Breakdown: make([]QuestionScore, 0, len(questions)),
	}

	for i, q := range questions {
		var content models.MCQContent
		if err := json.Unmarshal(q.Content, &content); err != nil {
			return nil, fmt.Errorf("failed to decode question %d content: %w", i, err)
		}

		qs := QuestionScore{
			QuestionIndex: i,
			CorrectOption: content.CorrectOption,
		}

		if a, ok := answerByIndex[i]; ok {
			selected := a.SelectedOption
			qs.SelectedOption = &selected
			qs.Correct = selected == content.CorrectOption
		}

		if qs.Correct {
			result.Score++
		}
		result.Breakdown = append(result.Breakdown, qs)
	}

	return result, nil
}
