package stats_test

import (
	"math/rand"
	"slices"
	"testing"

	"daystohire/services/calculator/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestPercentile(t *testing.T) {
	values := seq(1, 20)

	assert.InDelta(t, 2.9, stats.Percentile(values, 10), 1e-9)
	assert.InDelta(t, 18.1, stats.Percentile(values, 90), 1e-9)
	assert.Equal(t, 1.0, stats.Percentile(values, 0))
	assert.Equal(t, 20.0, stats.Percentile(values, 100))
	assert.Equal(t, 10.5, stats.Percentile(values, 50))
	assert.Equal(t, 7.0, stats.Percentile([]int{7}, 10))
	assert.Equal(t, 0.0, stats.Percentile(nil, 10))
}

func TestCompute_OneToTwenty(t *testing.T) {
	res, outcome := stats.Compute(seq(1, 20), stats.DefaultMinPostings)

	// Ranks are 1-indexed as in PERCENTILE_CONT, r = 1 + p/100*(n-1). Do not
	// shift them to 0-indexed to reach count 15.
	// Rank 2.9 interpolates between the 2nd and 3rd values, rank 18.1 between
	// the 18th and 19th: the kept band is [2.9, 18.1], i.e. 3..18.
	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 16, res.Count)
	assert.Equal(t, 20, res.TotalCount)
	assert.Equal(t, 3.0, res.MinDays)
	assert.Equal(t, 18.0, res.MaxDays)
	assert.Equal(t, 10.5, res.AvgDays)
	assert.InDelta(t, 2.9, res.P10, 1e-9)
	assert.InDelta(t, 18.1, res.P90, 1e-9)
}

func TestCompute_BoundaryOnExactRankIsKept(t *testing.T) {
	// 0.1*30 is not exactly 3 in floating point; the cut must still land on 4.
	res, outcome := stats.Compute(seq(1, 31), stats.DefaultMinPostings)

	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 4.0, res.MinDays)
	assert.Equal(t, 28.0, res.MaxDays)
	assert.Equal(t, 25, res.Count)
	assert.Equal(t, 16.0, res.AvgDays)
}

func TestCompute_UnsortedInputIsNotModified(t *testing.T) {
	values := []int{20, 1, 19, 2, 18, 3, 17, 4, 16, 5, 15, 6, 14, 7, 13, 8, 12, 9, 11, 10}
	original := slices.Clone(values)

	res, outcome := stats.Compute(values, stats.DefaultMinPostings)

	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 16, res.Count)
	assert.Equal(t, original, values)
}

func TestCompute_AllEqual(t *testing.T) {
	res, outcome := stats.Compute([]int{30, 30, 30, 30, 30, 30}, stats.DefaultMinPostings)

	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 6, res.Count)
	assert.Equal(t, 30.0, res.MinDays)
	assert.Equal(t, 30.0, res.AvgDays)
	assert.Equal(t, 30.0, res.MaxDays)
}

func TestCompute_Empty(t *testing.T) {
	res, outcome := stats.Compute(nil, stats.DefaultMinPostings)

	assert.Equal(t, stats.OutcomeEmpty, outcome)
	assert.Equal(t, stats.Result{}, res)
}

func TestCompute_BelowThreshold(t *testing.T) {
	// Six values trim to four, under the default of five.
	res, outcome := stats.Compute([]int{1, 2, 3, 4, 5, 6}, stats.DefaultMinPostings)

	assert.Equal(t, stats.OutcomeBelowThreshold, outcome)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, 6, res.TotalCount)

	_, outcome = stats.Compute([]int{1, 2, 3, 4, 5, 6}, 4)
	assert.Equal(t, stats.OutcomeAccepted, outcome)
}

func TestCompute_TwoDistinctValuesKeepNothing(t *testing.T) {
	res, outcome := stats.Compute([]int{1, 10}, 1)

	assert.Equal(t, stats.OutcomeBelowThreshold, outcome)
	assert.Equal(t, 0, res.Count)
	assert.InDelta(t, 1.9, res.P10, 1e-9)
	assert.InDelta(t, 9.1, res.P90, 1e-9)
}

func TestCompute_SmallGroupUsesSameRule(t *testing.T) {
	// n=5: cuts at 1.4 and 4.6 keep 2, 3 and 4.
	res, outcome := stats.Compute([]int{1, 2, 3, 4, 5}, 1)

	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 2.0, res.MinDays)
	assert.Equal(t, 4.0, res.MaxDays)
	assert.Equal(t, 3.0, res.AvgDays)
}

func TestCompute_ZeroDaysIsAValue(t *testing.T) {
	values := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}

	res, outcome := stats.Compute(values, stats.DefaultMinPostings)

	require.Equal(t, stats.OutcomeAccepted, outcome)
	assert.Equal(t, 10, res.Count)
	assert.Equal(t, 0.0, res.MinDays)
	assert.Equal(t, 1.0, res.MaxDays)
	assert.Equal(t, 0.5, res.AvgDays)
}

func TestCompute_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(200)
		values := make([]int, n)
		for j := range values {
			values[j] = rng.Intn(365)
		}

		res, outcome := stats.Compute(values, stats.DefaultMinPostings)
		if outcome != stats.OutcomeAccepted {
			assert.Less(t, res.Count, stats.DefaultMinPostings)
			continue
		}

		assert.LessOrEqual(t, res.MinDays, res.AvgDays)
		assert.LessOrEqual(t, res.AvgDays, res.MaxDays)
		assert.GreaterOrEqual(t, res.Count, stats.DefaultMinPostings)
		assert.LessOrEqual(t, res.Count, n)
		assert.GreaterOrEqual(t, res.MinDays, res.P10)
		assert.LessOrEqual(t, res.MaxDays, res.P90)

		again, _ := stats.Compute(values, stats.DefaultMinPostings)
		assert.Equal(t, res, again)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "empty", stats.OutcomeEmpty.String())
	assert.Equal(t, "below_threshold", stats.OutcomeBelowThreshold.String())
	assert.Equal(t, "accepted", stats.OutcomeAccepted.String())
	assert.Equal(t, "outcome(9)", stats.Outcome(9).String())
}
