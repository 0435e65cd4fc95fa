package validator

import (
	"encoding/json"

	"github.com/brightpath-edu/exam-service/internal/models"
)

// ExamQuestionRequest represents one question inside an exam create request.
// Content schema depends on Type.
type ExamQuestionRequest struct {
	Type    models.ExamType `json:"type" validate:"required,exam_type"`
	Text    string          `json:"text" validate:"required,min=1,max=2000"`
	Content json.RawMessage `json:"content" validate:"required"`
}

// ExamCreateRequest represents the request structure for creating exams
type ExamCreateRequest struct {
	Title         string                `json:"title" validate:"required,exam_title"`
	Description   *string               `json:"description" validate:"omitempty,max=1000"`
	ExamType      models.ExamType       `json:"exam_type" validate:"required,exam_type"`
	TotalMaxMarks int                   `json:"total_max_marks" validate:"required,min=1"`
	Questions     []ExamQuestionRequest `json:"questions" validate:"omitempty,max=200,dive"`
}

// QuestionMaxPointsUpdate retargets one question's max points as part of a
// max marks adjustment.
type QuestionMaxPointsUpdate struct {
	QuestionIndex int `json:"question_index" validate:"min=0"`
	MaxPoints     int `json:"max_points" validate:"required,min=1"`
}

// UpdateMaxMarksRequest adjusts an exam's total max marks (admin only). For
// descriptive and voice exams the optional per-question updates let the new
// total stay consistent with the question points sum.
type UpdateMaxMarksRequest struct {
	TotalMaxMarks     int                       `json:"total_max_marks" validate:"required,min=1"`
	QuestionMaxPoints []QuestionMaxPointsUpdate `json:"question_max_points" validate:"omitempty,max=200,dive"`
}

// SubmissionCreateRequest represents the request structure for creating
// submissions. Answers is decoded per submission type by the service.
type SubmissionCreateRequest struct {
	ExamID         uint                  `json:"exam_id" validate:"required"`
	SubmissionType models.SubmissionType `json:"submission_type" validate:"required,submission_type"`
	Answers        json.RawMessage       `json:"answers" validate:"required"`
}

// RecordEvaluationRequest records a trainer's evaluation of a pending
// submission
type RecordEvaluationRequest struct {
	Score      int    `json:"score" validate:"min=0"`
	Evaluation string `json:"evaluation" validate:"required,max=5000"`
}
