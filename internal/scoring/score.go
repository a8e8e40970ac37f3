package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

// IsCorrect compares a normalized candidate answer against the stored
// alternatives. Comparison is case-insensitive and trim-insensitive; the
// answer is correct if it equals any alternative, with no partial credit.
// A question with no stored alternatives is always incorrect, so attempted
// and total counts stay consistent for band lookup.
func IsCorrect(normalized string, alternatives []string) bool {
	if normalized == "" || len(alternatives) == 0 {
		return false
	}
	for _, alt := range alternatives {
		if strings.EqualFold(normalized, strings.TrimSpace(alt)) {
			return true
		}
	}
	return false
}

// ScoreSubmission scores a full module submission against its reference
// questions and band table. Pure given its inputs: missing reference data
// produces an empty zero result, malformed answers score incorrect, and no
// input ever causes an error.
func ScoreSubmission(
	moduleType models.ModuleType,
	rawAnswers models.AnswerSheet,
	questions []models.Question,
	bandTable []models.BandScoreRange,
) *models.DetailedScoreResult {
	verdicts := make([]models.QuestionVerdict, 0, len(questions))
	for _, q := range questions {
		given := resolveAnswer(q, rawAnswers)
		verdicts = append(verdicts, models.QuestionVerdict{
			QuestionNumber: q.QuestionNumber,
			Part:           q.Part,
			Type:           q.Type,
			Given:          given,
			Correct:        IsCorrect(given, correctAlternatives(q)),
		})
	}
	return Aggregate(moduleType, verdicts, bandTable)
}

// Aggregate folds per-question verdicts into the persisted result shape:
// raw score, accuracy, per-part scores and per-question-type scores, each
// banded against the shared whole-test table.
func Aggregate(moduleType models.ModuleType, verdicts []models.QuestionVerdict, bandTable []models.BandScoreRange) *models.DetailedScoreResult {
	result := &models.DetailedScoreResult{
		ModuleType: moduleType,
		PartScores: map[int]models.PartScore{},
		TypeScores: map[string]models.QuestionTypeScore{},
	}

	partCorrect := map[int]int{}
	partTotal := map[int]int{}
	typeCorrect := map[string]int{}
	typeTotal := map[string]int{}

	for _, v := range verdicts {
		result.TotalQuestions++
		partTotal[v.Part]++
		typeTotal[v.Type.Label()]++
		if v.Correct {
			result.CorrectAnswers++
			partCorrect[v.Part]++
			typeCorrect[v.Type.Label()]++
		}
	}

	result.Accuracy = accuracy(result.CorrectAnswers, result.TotalQuestions)
	result.BandScore = LookupBand(result.CorrectAnswers, bandTable)

	for part, total := range partTotal {
		correct := partCorrect[part]
		result.PartScores[part] = models.PartScore{
			Correct:   correct,
			Total:     total,
			Score:     correct,
			BandScore: LookupBand(correct, bandTable),
		}
	}

	for label, total := range typeTotal {
		correct := typeCorrect[label]
		result.TypeScores[label] = models.QuestionTypeScore{
			Correct:   correct,
			Total:     total,
			Accuracy:  accuracy(correct, total),
			BandScore: LookupBand(correct, bandTable),
		}
	}

	return result
}

// accuracy is round(correct/total*100) with ties rounding half up; zero when
// total is zero rather than NaN.
func accuracy(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// resolveAnswer locates and normalizes the raw answer for one question. The
// sheet keys answers by question number; grouped questions may instead nest
// their fields under the group id, keyed by field key or question number.
func resolveAnswer(q models.Question, rawAnswers models.AnswerSheet) string {
	if rawAnswers == nil {
		return ""
	}

	key := strconv.Itoa(q.QuestionNumber)
	if raw, ok := rawAnswers[key]; ok {
		return NormalizeAnswer(q.Type, raw)
	}

	if q.GroupID != nil {
		if raw, ok := rawAnswers[*q.GroupID]; ok {
			fields := NormalizeGroupedAnswer(raw)
			if q.FieldKey != nil {
				if v, ok := fields[*q.FieldKey]; ok {
					return v
				}
			}
			if v, ok := fields[key]; ok {
				return v
			}
		}
	}

	return ""
}

func correctAlternatives(q models.Question) []string {
	if len(q.CorrectAnswers) == 0 {
		return nil
	}
	var alts []string
	if err := json.Unmarshal(q.CorrectAnswers, &alts); err == nil {
		return alts
	}
	// A single bare string is tolerated for legacy rows.
	var single string
	if err := json.Unmarshal(q.CorrectAnswers, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
