package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice        QuestionType = "single_choice"
	FillBlank           QuestionType = "fill_blank"
	TrueFalseNotGiven   QuestionType = "true_false_not_given"
	MatchingHeading     QuestionType = "matching_heading"
	MatchingInformation QuestionType = "matching_information"
	FlowChart           QuestionType = "flow_chart"
	TableCompletion     QuestionType = "table_completion"
	SummaryCompletion   QuestionType = "summary_completion"
	WritingTask         QuestionType = "writing_task"
)

// AllQuestionTypes lists every supported type. Scoring switches over this set
// exhaustively; an unknown type is rejected at authoring time, never silently
// mapped to a default.
var AllQuestionTypes = []QuestionType{
	SingleChoice,
	FillBlank,
	TrueFalseNotGiven,
	MatchingHeading,
	MatchingInformation,
	FlowChart,
	TableCompletion,
	SummaryCompletion,
	WritingTask,
}

// Label returns the human-readable form used for question-type score groups.
func (t QuestionType) Label() string {
	switch t {
	case SingleChoice:
		return "single choice"
	case FillBlank:
		return "fill blank"
	case TrueFalseNotGiven:
		return "true false not given"
	case MatchingHeading:
		return "matching heading"
	case MatchingInformation:
		return "matching information"
	case FlowChart:
		return "flow chart"
	case TableCompletion:
		return "table completion"
	case SummaryCompletion:
		return "summary completion"
	case WritingTask:
		return "writing task"
	}
	return string(t)
}

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	for _, known := range AllQuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Grouped reports whether answers for this type arrive keyed by sub-field
// rather than as a single value.
func (t QuestionType) Grouped() bool {
	switch t {
	case FlowChart, TableCompletion, MatchingHeading, MatchingInformation:
		return true
	}
	return false
}

// Question is reference data owned by the authoring flow and read-only to the
// scorer. QuestionNumber is the stable addressable unit within a test; grouped
// questions (flow chart, table) store one row per sub-field sharing a GroupID.
type Question struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	TestID         uint         `json:"test_id" gorm:"not null;index"`
	Part           int          `json:"part" gorm:"not null;index" validate:"required,min=1,max=4"`
	QuestionNumber int          `json:"question_number" gorm:"not null" validate:"required,min=1"`
	Type           QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Points         int          `json:"points" gorm:"default:1" validate:"min=1"`

	// Sub-field grouping for flow-chart/table questions
	GroupID  *string `json:"group_id" gorm:"size:64;index"`
	FieldKey *string `json:"field_key" gorm:"size:64"`

	// Type-dependent content (prompt, options, headings, diagram labels)
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	// Acceptable answer alternatives ([]string); first match wins, no partial
	// credit. Immutable once the owning test is published.
	CorrectAnswers datatypes.JSON `json:"correct_answers" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Test Test `json:"-" gorm:"foreignKey:TestID"`
}

func (Question) TableName() string {
	return "questions"
}
