package relocator

import (
	"github.com/FMassin/scdlpicker/internal/seismic"
)

// minArrivalWeight is the weight below which an arrival does not count
// toward pick-overlap scoring.
const minArrivalWeight = 0.5

// picksReferenced returns the set of pick identifiers referenced by the
// origin's arrivals with at least the minimum weight.
func picksReferenced(origin *seismic.Origin) map[string]bool {
	picks := make(map[string]bool, len(origin.Arrivals))
	for i := range origin.Arrivals {
		arr := &origin.Arrivals[i]
		if arr.PickID == "" || arr.Weight < minArrivalWeight {
			continue
		}
		picks[arr.PickID] = true
	}
	return picks
}

// comparePicks splits the referenced picks of two origins into the common
// set and the sets exclusive to each.
func comparePicks(origin1, origin2 *seismic.Origin) (common, only1, only2 int) {
	picks1 := picksReferenced(origin1)
	picks2 := picksReferenced(origin2)

	for pickID := range picks1 {
		if picks2[pickID] {
			common++
		} else {
			only1++
		}
	}
	for pickID := range picks2 {
		if !picks1[pickID] {
			only2++
		}
	}
	return common, only1, only2
}

// Improves reports whether the candidate origin improves on the previous
// one. The score is (count2/count1)^2 * (rms1/rms2), where counts are the
// weighted pick counts and rms values are floored at 1. A previous origin
// without a readable standard error defaults to 10, a candidate to 1; the
// asymmetry deliberately favors replacing poorly qualified solutions.
func Improves(previous, candidate *seismic.Origin) bool {
	if previous == nil {
		return true
	}
	common, only1, only2 := comparePicks(previous, candidate)
	count1 := only1 + common
	count2 := only2 + common

	rms1 := 10.0
	if se, ok := previous.StandardError(); ok {
		rms1 = max(se, 1.0)
	}
	rms2 := 1.0
	if se, ok := candidate.StandardError(); ok {
		rms2 = max(se, 1.0)
	}

	if count1 == 0 {
		return true
	}

	ratio := float64(count2) / float64(count1)
	score := ratio * ratio * (rms1 / rms2)
	return score > 1
}
