package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
	ExamArchived  ExamStatus = "archived"
)

type ExamType string

const (
	ExamTypeMCQ         ExamType = "mcq"
	ExamTypeDescriptive ExamType = "descriptive"
	ExamTypeVoice       ExamType = "voice"
)

type Exam struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Title         string     `json:"title" gorm:"not null;size:200" validate:"required,exam_title"`
	Description   *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	ExamType      ExamType   `json:"exam_type" gorm:"not null;size:20;index" validate:"required,exam_type"`
	TotalMaxMarks int        `json:"total_max_marks" gorm:"not null" validate:"required,min=1"`
	Status        ExamStatus `json:"status" gorm:"default:draft;index"`
	CreatedBy     string     `json:"created_by" gorm:"not null;index;size:255"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []ExamQuestion `json:"questions" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
}

func (Exam) TableName() string {
	return "exams"
}

// QuestionCount returns the number of questions attached to the exam.
func (e *Exam) QuestionCount() int {
	return len(e.Questions)
}

// ExamQuestion is a question inside an exam, ordered by Position (0-based).
type ExamQuestion struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	ExamID   uint     `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_exam_position"`
	Position int      `json:"position" gorm:"not null;uniqueIndex:idx_exam_position"`
	Type     ExamType `json:"type" gorm:"not null;size:20"`
	Text     string   `json:"text" gorm:"not null;type:text"`

	// Content schema depends on Type (MCQContent, DescriptiveContent, VoiceContent)
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// MCQContent is the content document for mcq questions.
type MCQContent struct {
	Options       []string `json:"options" validate:"required,min=2,max=10"`
	CorrectOption int      `json:"correct_option" validate:"min=0"`
}

// DescriptiveContent is the content document for descriptive questions.
type DescriptiveContent struct {
	MaxPoints  int     `json:"max_points" validate:"required,min=1"`
	Guidelines *string `json:"guidelines,omitempty"`
}

// VoiceContent is the content document for voice questions.
type VoiceContent struct {
	MaxPoints          int  `json:"max_points" validate:"required,min=1"`
	MaxDurationSeconds *int `json:"max_duration_seconds,omitempty" validate:"omitempty,min=1,max=3600"`
}
