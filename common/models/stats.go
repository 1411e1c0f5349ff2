package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WorldScope is the storage encoding of the world aggregate. Country codes are
// ISO-3166-1 alpha-2, so it never collides with a real country.
const WorldScope = "WORLD"

// Scope identifies the aggregation granularity of a statistics row: either
// the world aggregate or one country. The zero value is the world scope.
type Scope struct {
	country string
}

func World() Scope {
	return Scope{}
}

// Country returns the scope for code. An empty code yields the world scope.
// Codes from outside the process go through ParseCountry first.
func Country(code string) Scope {
	return Scope{country: strings.TrimSpace(code)}
}

// IsCountryCode reports whether code has the ISO-3166-1 alpha-2 shape: exactly
// two ASCII letters. WorldScope never passes.
func IsCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// ParseCountry maps a raw country code to a scope. Blank means world; anything
// else must be an alpha-2 code once trimmed.
func ParseCountry(code string) (Scope, error) {
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return World(), nil
	case !IsCountryCode(code):
		return Scope{}, fmt.Errorf("invalid country code %q", code)
	default:
		return Scope{country: code}, nil
	}
}

func (s Scope) IsWorld() bool {
	return s.country == ""
}

// CountryCode returns the country code and true, or "" and false for the
// world scope.
func (s Scope) CountryCode() (string, bool) {
	return s.country, s.country != ""
}

func (s Scope) String() string {
	if s.IsWorld() {
		return WorldScope
	}
	return s.country
}

// ParseScope decodes the storage encoding produced by String.
func ParseScope(v string) (Scope, error) {
	switch {
	case v == WorldScope:
		return World(), nil
	case strings.TrimSpace(v) == "":
		return Scope{}, fmt.Errorf("empty scope")
	case !IsCountryCode(v):
		return Scope{}, fmt.Errorf("invalid scope %q", v)
	default:
		return Scope{country: v}, nil
	}
}

type Key struct {
	StandardJobID string
	Scope         Scope
}

func (k Key) String() string {
	return k.StandardJobID + "/" + k.Scope.String()
}

type StatsRow struct {
	Key
	MinDays          float64
	AvgDays          float64
	MaxDays          float64
	JobPostingsCount int
}

// SameStats reports whether both rows carry identical statistics.
func (r StatsRow) SameStats(other StatsRow) bool {
	return r.MinDays == other.MinDays &&
		r.AvgDays == other.AvgDays &&
		r.MaxDays == other.MaxDays &&
		r.JobPostingsCount == other.JobPostingsCount
}

type statsRowJSON struct {
	StandardJobID    string  `json:"standard_job_id"`
	Scope            string  `json:"scope"`
	MinDays          float64 `json:"min_days"`
	AvgDays          float64 `json:"avg_days"`
	MaxDays          float64 `json:"max_days"`
	JobPostingsCount int     `json:"job_postings_count"`
}

func (r StatsRow) MarshalBinary() ([]byte, error) {
	return json.Marshal(statsRowJSON{
		StandardJobID:    r.StandardJobID,
		Scope:            r.Scope.String(),
		MinDays:          r.MinDays,
		AvgDays:          r.AvgDays,
		MaxDays:          r.MaxDays,
		JobPostingsCount: r.JobPostingsCount,
	})
}

func (r *StatsRow) UnmarshalBinary(data []byte) error {
	var raw statsRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	scope, err := ParseScope(raw.Scope)
	if err != nil {
		return err
	}
	*r = StatsRow{
		Key:              Key{StandardJobID: raw.StandardJobID, Scope: scope},
		MinDays:          raw.MinDays,
		AvgDays:          raw.AvgDays,
		MaxDays:          raw.MaxDays,
		JobPostingsCount: raw.JobPostingsCount,
	}
	return nil
}
