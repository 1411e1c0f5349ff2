// Package stats computes trimmed days-to-hire statistics for one group of
// postings.
//
// Percentile boundaries use linear interpolation between 1-indexed ranks: for
// percentile p over n sorted values the rank is r = 1 + p/100*(n-1) and the
// boundary lies between the values at floor(r) and ceil(r). This is the same
// rule as PERCENTILE_CONT. The rank is split into integer quotient and
// remainder, and boundaries are kept scaled by 100 as integers, so the
// inclusive comparison against integer day counts is exact and re-runs always
// cut at the same place.
package stats

import (
	"fmt"
	"slices"
)

const (
	LowerPercentile = 10
	UpperPercentile = 90

	DefaultMinPostings = 5
)

type Outcome int

const (
	// OutcomeEmpty means the group had no values at all.
	OutcomeEmpty Outcome = iota
	// OutcomeBelowThreshold means fewer values than the minimum survived the trim.
	OutcomeBelowThreshold
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeBelowThreshold:
		return "below_threshold"
	case OutcomeAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	MinDays float64
	AvgDays float64
	MaxDays float64
	// Count is the number of values kept after trimming.
	Count int
	// TotalCount is the group size before trimming.
	TotalCount int
	P10        float64
	P90        float64
}

// Percentile returns the p-th percentile (0-100) of sorted, which must be in
// ascending order. It returns 0 for an empty slice.
func Percentile(sorted []int, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return float64(scaledPercentile(sorted, p)) / 100
}

// scaledPercentile returns 100 times the p-th percentile of sorted.
func scaledPercentile(sorted []int, p int) int64 {
	p = min(max(p, 0), 100)

	num := p * (len(sorted) - 1)
	lo, rem := num/100, num%100

	base := int64(sorted[lo]) * 100
	if rem == 0 {
		return base
	}
	return base + int64(rem)*int64(sorted[lo+1]-sorted[lo])
}

// Compute trims values to the inclusive [p10, p90] band and returns the
// statistics of what is left. The result is accepted only when at least
// minPostings values survive the trim. values is not modified.
func Compute(values []int, minPostings int) (Result, Outcome) {
	if len(values) == 0 {
		return Result{}, OutcomeEmpty
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	low := scaledPercentile(sorted, LowerPercentile)
	high := scaledPercentile(sorted, UpperPercentile)

	res := Result{
		TotalCount: len(sorted),
		P10:        float64(low) / 100,
		P90:        float64(high) / 100,
	}

	var sum int64
	for _, v := range sorted {
		scaled := int64(v) * 100
		if scaled < low {
			continue
		}
		if scaled > high {
			break
		}
		if res.Count == 0 {
			res.MinDays = float64(v)
		}
		res.MaxDays = float64(v)
		sum += int64(v)
		res.Count++
	}

	// Two distinct values can interpolate both cuts strictly between them.
	if res.Count == 0 {
		return res, OutcomeBelowThreshold
	}

	res.AvgDays = float64(sum) / float64(res.Count)

	if res.Count < minPostings {
		return res, OutcomeBelowThreshold
	}
	return res, OutcomeAccepted
}
