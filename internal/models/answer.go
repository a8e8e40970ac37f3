package models

// AnswerSheet maps a question number (as string) to the candidate's raw
// answer. The value shape depends on the question type: a plain string for
// single-value questions, or a fieldKey -> value object for grouped and
// matching questions. Stored as JSONB on the session and mutated by every
// auto-save tick until the session completes.
type AnswerSheet map[string]interface{}

// Per-type request payload shapes. Clients submit one of these as the raw
// answer value; the scorer normalizes them without trusting the shape.

type SingleChoiceAnswer struct {
	Selected string `json:"selected"`
}

type TrueFalseNotGivenAnswer struct {
	Answer string `json:"answer"` // TRUE | FALSE | NOT_GIVEN
}

type FillBlankAnswer struct {
	Text string `json:"text"`
}

type MatchingAnswer struct {
	Pairs map[string]string `json:"pairs"` // itemID -> label
}

type GroupedFieldAnswer struct {
	Fields map[string]string `json:"fields"` // questionNumber -> value
}

type WritingTaskAnswer struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}
