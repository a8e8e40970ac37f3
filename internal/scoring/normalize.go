package scoring

import (
	"fmt"
	"strings"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

// NormalizeAnswer converts the raw submission value for one question into a
// canonical string suitable for comparison. Missing or malformed values
// normalize to the empty string and are scored incorrect; normalization never
// fails. Leading/trailing whitespace is trimmed, internal whitespace is kept
// (fill-blank answers expect the exact text, case handled by the scorer).
func NormalizeAnswer(qType models.QuestionType, raw interface{}) string {
	if raw == nil {
		return ""
	}

	switch qType {
	case models.SingleChoice:
		return strings.TrimSpace(asString(raw, "selected"))
	case models.TrueFalseNotGiven:
		return strings.TrimSpace(asString(raw, "answer"))
	case models.FillBlank, models.SummaryCompletion:
		return strings.TrimSpace(asString(raw, "text"))
	case models.MatchingHeading, models.MatchingInformation:
		// Matching answers are sub-keyed; a direct value only appears when
		// the caller already extracted the sub-field.
		return strings.TrimSpace(asString(raw, ""))
	case models.FlowChart, models.TableCompletion:
		return strings.TrimSpace(asString(raw, ""))
	case models.WritingTask:
		return strings.TrimSpace(asString(raw, "text"))
	}
	return ""
}

// NormalizeGroupedAnswer extracts the per-field values of a grouped raw
// answer (matching pairs, flow-chart fields, table cells) keyed by sub-key.
// Non-object values yield an empty map, never an error.
func NormalizeGroupedAnswer(raw interface{}) map[string]string {
	fields := map[string]string{}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return fields
	}

	// Payloads may nest the mapping under "pairs" (matching) or "fields"
	// (flow-chart/table); a bare object is accepted as the mapping itself.
	for _, key := range []string{"pairs", "fields"} {
		if inner, ok := obj[key].(map[string]interface{}); ok {
			obj = inner
			break
		}
	}

	for k, v := range obj {
		if s, ok := v.(string); ok {
			fields[k] = strings.TrimSpace(s)
		}
	}
	return fields
}

// asString coerces the supported raw shapes to a string. Wrapped object
// payloads are unwrapped via their conventional key; anything else that is
// not a string or number normalizes to "".
func asString(raw interface{}, wrapperKey string) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; answers like "42" may arrive bare.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case map[string]interface{}:
		if wrapperKey == "" {
			return ""
		}
		if inner, ok := v[wrapperKey]; ok {
			if s, ok := inner.(string); ok {
				return s
			}
		}
		return ""
	}
	return ""
}
