package aggregator_test

import (
	"testing"

	"daystohire/common/models"
	"daystohire/services/calculator/internal/aggregator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func posting(job string, country *string, days *int) models.Posting {
	return models.Posting{ID: "p", StandardJobID: job, CountryCode: country, DaysToHire: days}
}

func TestGrouper_WorldAndCountry(t *testing.T) {
	g := aggregator.NewGrouper()

	assert.True(t, g.Add(posting("job-1", ptr("DE"), ptr(10))))
	assert.True(t, g.Add(posting("job-1", ptr("US"), ptr(20))))
	assert.True(t, g.Add(posting("job-1", nil, ptr(30))))
	assert.True(t, g.Add(posting("job-1", ptr(""), ptr(40))))

	groups := g.Groups()
	require.Len(t, groups, 3)

	assert.Equal(t, models.Key{StandardJobID: "job-1", Scope: models.World()}, groups[0].Key)
	assert.Equal(t, []int{10, 20, 30, 40}, groups[0].Values)

	assert.Equal(t, models.Country("DE"), groups[1].Key.Scope)
	assert.Equal(t, []int{10}, groups[1].Values)

	assert.Equal(t, models.Country("US"), groups[2].Key.Scope)
	assert.Equal(t, []int{20}, groups[2].Values)

	assert.Equal(t, 4, g.Accepted())
}

func TestGrouper_SkipsIneligible(t *testing.T) {
	g := aggregator.NewGrouper()

	assert.False(t, g.Add(posting("job-1", ptr("DE"), nil)))
	assert.False(t, g.Add(posting("job-1", ptr("DE"), ptr(-3))))
	assert.False(t, g.Add(posting("", ptr("DE"), ptr(3))))
	assert.True(t, g.Add(posting("job-1", ptr("DE"), ptr(0))))

	assert.Equal(t, 1, g.Rejected())
	assert.Equal(t, 1, g.Accepted())

	groups := g.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, []int{0}, groups[0].Values)
}

func TestGrouper_DeterministicOrder(t *testing.T) {
	g := aggregator.NewGrouper()

	g.Add(posting("job-b", ptr("US"), ptr(1)))
	g.Add(posting("job-a", ptr("US"), ptr(2)))
	g.Add(posting("job-b", ptr("DE"), ptr(3)))
	g.Add(posting("job-a", ptr("AT"), ptr(4)))

	var keys []string
	for _, group := range g.Groups() {
		keys = append(keys, group.Key.String())
	}

	assert.Equal(t, []string{
		"job-a/WORLD", "job-a/AT", "job-a/US",
		"job-b/WORLD", "job-b/DE", "job-b/US",
	}, keys)
}

func TestGrouper_EmptyHasNoGroups(t *testing.T) {
	g := aggregator.NewGrouper()
	g.Add(posting("job-1", ptr("DE"), nil))

	assert.Empty(t, g.Groups())
}

func TestGrouper_RejectsMalformedCountry(t *testing.T) {
	g := aggregator.NewGrouper()
	for days := 1; days <= 10; days++ {
		g.Add(posting("job-1", ptr("DE"), ptr(days)))
	}

	assert.False(t, g.Add(posting("job-1", ptr("WORLD"), ptr(100))))
	assert.False(t, g.Add(posting("job-1", ptr("DEU"), ptr(100))))
	assert.True(t, g.Add(posting("job-1", ptr(" US "), ptr(7))))

	assert.Equal(t, 2, g.Rejected())
	assert.Equal(t, 11, g.Accepted())

	groups := g.Groups()
	require.Len(t, groups, 3)

	seen := make(map[string]bool)
	for _, group := range groups {
		key := group.Key.String()
		assert.False(t, seen[key], "duplicate group %s", key)
		seen[key] = true
		assert.NotContains(t, group.Values, 100)
	}
	assert.Equal(t, models.Country("US"), groups[2].Key.Scope)
}
