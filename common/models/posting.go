package models

// Posting is the read-only view of a job posting used for aggregation.
type Posting struct {
	ID            string
	StandardJobID string
	CountryCode   *string
	DaysToHire    *int
}

// Country returns the posting's country code, or "" when it is unknown.
func (p Posting) Country() string {
	if p.CountryCode == nil {
		return ""
	}
	return *p.CountryCode
}
