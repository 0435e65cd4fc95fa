package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/brightpath-edu/exam-service/internal/models"
)

// registerDomainRules registers custom validators shared by all request DTOs
func registerDomainRules(validate *validator.Validate) {
	// Title validation (1-200 characters)
	validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	validate.RegisterValidation("exam_type", func(fl validator.FieldLevel) bool {
		switch models.ExamType(fl.Field().String()) {
		case models.ExamTypeMCQ, models.ExamTypeDescriptive, models.ExamTypeVoice:
			return true
		}
		return false
	})

	validate.RegisterValidation("submission_type", func(fl validator.FieldLevel) bool {
		switch models.SubmissionType(fl.Field().String()) {
		case models.SubmissionMCQ, models.SubmissionDescriptive, models.SubmissionVoice:
			return true
		}
		return false
	})

	validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		switch models.UserRole(fl.Field().String()) {
		case models.RoleLearner, models.RoleTrainer, models.RoleAdmin:
			return true
		}
		return false
	})
}

// BusinessValidator handles business rule validation beyond struct tags
type BusinessValidator struct {
	validator *Validator
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator(v *Validator) *BusinessValidator {
	return &BusinessValidator{validator: v}
}

// ValidateExamCreate validates exam creation business rules: every question
// must match the exam type and carry a decodable content document, and for
// descriptive/voice exams the question max points must sum to the exam's
// total max marks.
func (bv *BusinessValidator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	var errors ValidationErrors

	if err := bv.validator.Validate(req); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errors = append(errors, ve...)
		}
	}

	pointsSum := 0
	for i, q := range req.Questions {
		if q.Type != req.ExamType {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("questions[%d].type", i),
				Message: fmt.Sprintf("must match exam type %s", req.ExamType),
				Value:   q.Type,
				Rule:    "question_type_match",
			})
			continue
		}

		points, contentErrs := bv.validateQuestionContent(i, req.ExamType, q.Content)
		errors = append(errors, contentErrs...)
		pointsSum += points
	}

	if len(errors) == 0 && req.ExamType != models.ExamTypeMCQ && len(req.Questions) > 0 {
		if pointsSum != req.TotalMaxMarks {
			errors = append(errors, ValidationError{
				Field:   "total_max_marks",
				Message: fmt.Sprintf("must equal the sum of question max points (%d)", pointsSum),
				Value:   req.TotalMaxMarks,
				Rule:    "marks_consistency",
			})
		}
	}

	return errors
}

// validateQuestionContent decodes and checks a question content document,
// returning its max points contribution (0 for mcq).
func (bv *BusinessValidator) validateQuestionContent(index int, examType models.ExamType, content json.RawMessage) (int, ValidationErrors) {
	var errors ValidationErrors
	field := fmt.Sprintf("questions[%d].content", index)

	switch examType {
	case models.ExamTypeMCQ:
		var c models.MCQContent
		if err := strictUnmarshal(content, &c); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "invalid mcq content",
				Rule:    "content_schema",
			})
			return 0, errors
		}
		if len(c.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "must have at least 2 options",
				Value:   len(c.Options),
				Rule:    "content_schema",
			})
		}
		if c.CorrectOption < 0 || c.CorrectOption >= len(c.Options) {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "correct_option is out of range",
				Value:   c.CorrectOption,
				Rule:    "content_schema",
			})
		}
		return 0, errors

	case models.ExamTypeDescriptive:
		var c models.DescriptiveContent
		if err := strictUnmarshal(content, &c); err != nil || c.MaxPoints < 1 {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "invalid descriptive content",
				Rule:    "content_schema",
			})
			return 0, errors
		}
		return c.MaxPoints, nil

	case models.ExamTypeVoice:
		var c models.VoiceContent
		if err := strictUnmarshal(content, &c); err != nil || c.MaxPoints < 1 {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "invalid voice content",
				Rule:    "content_schema",
			})
			return 0, errors
		}
		return c.MaxPoints, nil
	}

	return 0, errors
}

// ValidateAnswerIndexes checks that every answered question index points at
// an existing question and that no index is answered twice. A question with
// no answer is allowed.
func (bv *BusinessValidator) ValidateAnswerIndexes(questionCount int, indexes []int) ValidationErrors {
	var errors ValidationErrors
	seen := make(map[int]bool, len(indexes))

	for i, idx := range indexes {
		if idx < 0 || idx >= questionCount {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_index", i),
				Message: fmt.Sprintf("does not reference a question in the exam (0-%d)", questionCount-1),
				Value:   idx,
				Rule:    "answer_reference",
			})
			continue
		}
		if seen[idx] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_index", i),
				Message: "question answered more than once",
				Value:   idx,
				Rule:    "answer_reference",
			})
		}
		seen[idx] = true
	}

	return errors
}

// ValidateScoreRange checks an evaluation score against the exam ceiling.
func (bv *BusinessValidator) ValidateScoreRange(score, totalMaxMarks int) ValidationErrors {
	if score < 0 || score > totalMaxMarks {
		return ValidationErrors{{
			Field:   "score",
			Message: fmt.Sprintf("must be between 0 and %d", totalMaxMarks),
			Value:   score,
			Rule:    "score_range",
		}}
	}
	return nil
}

func strictUnmarshal(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty content")
	}
	return json.Unmarshal(data, dest)
}
