package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-edu/exam-service/internal/models"
)

// Event types emitted over the submission lifecycle.
const (
	EventSubmissionCreated   = "submission.created"
	EventSubmissionEvaluated = "submission.evaluated"
	EventExamPublished       = "exam.published"
	EventExamMaxMarksUpdated = "exam.max_marks_updated"
)

const eventSource = "exam-service"

// Event is the envelope published for every lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with a fresh UUID and current timestamp.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes lifecycle events. Delivery guarantees beyond
// publish are out of scope for this service.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (p *NoopPublisher) Close() error { return nil }

// SubmissionCreatedData is the payload for submission.created.
type SubmissionCreatedData struct {
	SubmissionID   uint                    `json:"submission_id"`
	ExamID         uint                    `json:"exam_id"`
	LearnerID      string                  `json:"learner_id"`
	SubmissionType models.SubmissionType   `json:"submission_type"`
	Status         models.SubmissionStatus `json:"status"`
	SubmittedAt    time.Time               `json:"submitted_at"`
}

// SubmissionEvaluatedData is the payload for submission.evaluated.
type SubmissionEvaluatedData struct {
	SubmissionID uint      `json:"submission_id"`
	ExamID       uint      `json:"exam_id"`
	LearnerID    string    `json:"learner_id"`
	Score        int       `json:"score"`
	EvaluatedBy  *string   `json:"evaluated_by,omitempty"` // nil for auto-scored
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// ExamMaxMarksUpdatedData is the payload for exam.max_marks_updated.
type ExamMaxMarksUpdatedData struct {
	ExamID        uint   `json:"exam_id"`
	TotalMaxMarks int    `json:"total_max_marks"`
	UpdatedBy     string `json:"updated_by"`
}
