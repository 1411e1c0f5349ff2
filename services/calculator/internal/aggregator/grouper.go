package aggregator

import (
	"cmp"
	"slices"
	"strings"

	"daystohire/common/models"
)

// Group holds the eligible days-to-hire values of one (standard job, scope)
// combination.
type Group struct {
	Key    models.Key
	Values []int
}

// Grouper collects eligible postings into per-job world groups and per-job
// country groups. Postings may arrive in any order.
type Grouper struct {
	groups   map[models.Key][]int
	accepted int
	rejected int
}

func NewGrouper() *Grouper {
	return &Grouper{groups: make(map[models.Key][]int)}
}

// Add records p and reports whether it was eligible. Postings without a
// standard job or without a days-to-hire value are skipped. Negative values
// and malformed country codes are rejected.
func (g *Grouper) Add(p models.Posting) bool {
	if p.DaysToHire == nil || strings.TrimSpace(p.StandardJobID) == "" {
		return false
	}
	days := *p.DaysToHire
	if days < 0 {
		g.rejected++
		return false
	}
	scope, err := models.ParseCountry(p.Country())
	if err != nil {
		g.rejected++
		return false
	}

	world := models.Key{StandardJobID: p.StandardJobID, Scope: models.World()}
	g.groups[world] = append(g.groups[world], days)

	if !scope.IsWorld() {
		key := models.Key{StandardJobID: p.StandardJobID, Scope: scope}
		g.groups[key] = append(g.groups[key], days)
	}

	g.accepted++
	return true
}

// Accepted is the number of postings that contributed to at least the world
// group.
func (g *Grouper) Accepted() int {
	return g.accepted
}

// Rejected is the number of postings dropped for carrying an invalid value or
// country code.
func (g *Grouper) Rejected() int {
	return g.rejected
}

// Groups returns every non-empty group ordered by standard job, with the world
// group first and countries ascending after it.
func (g *Grouper) Groups() []Group {
	out := make([]Group, 0, len(g.groups))
	for key, values := range g.groups {
		out = append(out, Group{Key: key, Values: values})
	}

	slices.SortFunc(out, func(a, b Group) int {
		return CompareKeys(a.Key, b.Key)
	})
	return out
}

// CompareKeys orders keys by standard job, world scope first, then country.
func CompareKeys(a, b models.Key) int {
	if c := cmp.Compare(a.StandardJobID, b.StandardJobID); c != 0 {
		return c
	}
	switch aw, bw := a.Scope.IsWorld(), b.Scope.IsWorld(); {
	case aw && bw:
		return 0
	case aw:
		return -1
	case bw:
		return 1
	}
	ac, _ := a.Scope.CountryCode()
	bc, _ := b.Scope.CountryCode()
	return cmp.Compare(ac, bc)
}
