package scoring

import (
	"math"
	"sort"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

// RoundToHalfBand rounds to the nearest 0.5 band step. Applied at every
// combination step (task bands -> writing band, module bands -> overall) and
// idempotent, so repeated combination never drifts.
func RoundToHalfBand(x float64) float64 {
	return math.Round(x*2) / 2
}

// LookupBand maps a raw score to a band using the authored threshold table.
// The table is sorted descending by MinScore before lookup even if the stored
// order is unreliable; the first entry with MinScore <= rawScore wins. A raw
// score below every threshold maps to band 0.
func LookupBand(rawScore int, table []models.BandScoreRange) float64 {
	if len(table) == 0 {
		return 0
	}

	sorted := make([]models.BandScoreRange, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore > sorted[j].MinScore
	})

	for _, r := range sorted {
		if rawScore >= r.MinScore {
			return r.Band
		}
	}
	return 0
}

// CombineWritingTaskBands combines the two writing task bands, task 2 weighted
// twice task 1. With only one band present that band is used directly; with
// none, zero.
func CombineWritingTaskBands(task1, task2 *float64) float64 {
	switch {
	case task1 != nil && task2 != nil:
		return RoundToHalfBand((*task1 + *task2*2) / 3)
	case task1 != nil:
		return *task1
	case task2 != nil:
		return *task2
	}
	return 0
}

// ModuleBands carries whichever per-module bands exist for one linked exam.
type ModuleBands struct {
	Listening *float64
	Reading   *float64
	Writing   *float64
}

// StrictOverallBand averages listening, reading and writing only when all
// three are present; otherwise nil. This is the rule for the persisted
// "calculated overall band" field.
func StrictOverallBand(bands ModuleBands) *float64 {
	if bands.Listening == nil || bands.Reading == nil || bands.Writing == nil {
		return nil
	}
	overall := RoundToHalfBand((*bands.Listening + *bands.Reading + *bands.Writing) / 3)
	return &overall
}

// LenientOverallBand averages whichever bands are present and greater than
// zero. List views use this variant; it intentionally differs from
// StrictOverallBand (see DESIGN.md) and a single completed module yields an
// "overall" equal to that module's band.
func LenientOverallBand(bands ModuleBands) float64 {
	var sum float64
	var n int
	for _, b := range []*float64{bands.Listening, bands.Reading, bands.Writing} {
		if b != nil && *b > 0 {
			sum += *b
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return RoundToHalfBand(sum / float64(n))
}
