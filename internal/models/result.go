package models

// DetailedScoreResult is the JSON shape persisted on the session and consumed
// by the reporting views. Field names and the half-band rounding convention
// are the compatibility contract for stored results.
type DetailedScoreResult struct {
	ModuleType     ModuleType                   `json:"module_type"`
	BandScore      float64                      `json:"band_score"`
	TotalQuestions int                          `json:"total_questions"`
	CorrectAnswers int                          `json:"correct_answers"`
	Accuracy       int                          `json:"accuracy"`
	PartScores     map[int]PartScore            `json:"part_scores"`
	TypeScores     map[string]QuestionTypeScore `json:"question_type_scores"`
}

type PartScore struct {
	Correct   int     `json:"correct"`
	Total     int     `json:"total"`
	Score     int     `json:"score"`
	BandScore float64 `json:"band_score"`
}

type QuestionTypeScore struct {
	Correct   int     `json:"correct"`
	Total     int     `json:"total"`
	Accuracy  int     `json:"accuracy"`
	BandScore float64 `json:"band_score"`
}

// QuestionVerdict is one scored question: the normalizer/scorer output the
// aggregator consumes.
type QuestionVerdict struct {
	QuestionNumber int          `json:"question_number"`
	Part           int          `json:"part"`
	Type           QuestionType `json:"type"`
	Given          string       `json:"given"`
	Correct        bool         `json:"correct"`
}

// OverallResult combines the module sessions of one linked mock exam.
// OverallBand follows the strict rule (all three auto-combined modules
// present); LenientBand averages whatever subset exists and is what list
// views display. The two rules intentionally coexist, see DESIGN.md.
type OverallResult struct {
	LinkedTestID uint                    `json:"linked_test_id"`
	StudentID    uint                    `json:"student_id"`
	ModuleBands  map[ModuleType]*float64 `json:"module_bands"`
	OverallBand  *float64                `json:"overall_band"`
	LenientBand  float64                 `json:"lenient_band"`
}
