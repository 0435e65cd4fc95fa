package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionEvaluated SubmissionStatus = "evaluated"
)

type SubmissionType string

const (
	SubmissionMCQ         SubmissionType = "mcq"
	SubmissionDescriptive SubmissionType = "descriptive"
	SubmissionVoice       SubmissionType = "voice"
)

// SubmissionTypeForExam returns the submission type matching an exam type.
func SubmissionTypeForExam(t ExamType) SubmissionType {
	return SubmissionType(t)
}

type Submission struct {
	ID             uint             `json:"id" gorm:"primaryKey"`
	ExamID         uint             `json:"exam_id" gorm:"not null;index"`
	LearnerID      string           `json:"learner_id" gorm:"not null;index;size:255"`
	SubmissionType SubmissionType   `json:"submission_type" gorm:"not null;size:20;index"`
	Status         SubmissionStatus `json:"status" gorm:"default:pending;index"`

	// Answer content (polymorphic based on submission type)
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`

	// Evaluation fields, nil while pending
	Score       *int       `json:"score,omitempty"`
	Evaluation  *string    `json:"evaluation,omitempty" gorm:"type:text"`
	EvaluatedBy *string    `json:"evaluated_by,omitempty" gorm:"size:255"` // nil for auto-scored
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// IsEvaluated reports whether the submission has been evaluated.
func (s *Submission) IsEvaluated() bool {
	return s.Status == SubmissionEvaluated
}

// MCQAnswer selects one option for a question by its position in the exam.
type MCQAnswer struct {
	QuestionIndex  int `json:"question_index" validate:"min=0"`
	SelectedOption int `json:"selected_option" validate:"min=0"`
}

// DescriptiveAnswer is free text for a descriptive question.
type DescriptiveAnswer struct {
	QuestionIndex int    `json:"question_index" validate:"min=0"`
	Text          string `json:"text" validate:"required"`
}

// VoiceAnswer references an uploaded recording; storage is external and the
// URL is treated as opaque. The recording must carry a positive duration.
type VoiceAnswer struct {
	QuestionIndex   int    `json:"question_index" validate:"min=0"`
	RecordingURL    string `json:"recording_url" validate:"required,max=2048"`
	DurationSeconds *int   `json:"duration_seconds" validate:"required,min=1"`
}
