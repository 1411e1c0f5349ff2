package source

import (
	"context"
	"database/sql"
	"fmt"

	"daystohire/common/models"
	"daystohire/common/telemetry"
)

var tracer = telemetry.GetTracer("daystohire/calculator/source")

const postingsQuery = `
	SELECT id, standard_job_id, country_code, days_to_hire
	FROM job_posting FINAL
	WHERE days_to_hire IS NOT NULL
`

// PostingSource streams postings to the aggregator.
type PostingSource interface {
	Each(ctx context.Context, fn func(models.Posting) error) error
}

type ClickHouseSource struct {
	db *sql.DB
}

func NewClickHouseSource(db *sql.DB) *ClickHouseSource {
	return &ClickHouseSource{db: db}
}

// Each calls fn for every hired posting in job_posting. Iteration stops at the
// first error returned by fn.
func (s *ClickHouseSource) Each(ctx context.Context, fn func(models.Posting) error) error {
	ctx, span := tracer.Start(ctx, "ClickHouseSource.Each")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, postingsQuery)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query job postings: %w", err)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var (
			p       models.Posting
			country sql.NullString
			days    sql.NullInt32
		)
		if err := rows.Scan(&p.ID, &p.StandardJobID, &country, &days); err != nil {
			span.RecordError(err)
			return fmt.Errorf("scan job posting: %w", err)
		}
		if country.Valid {
			p.CountryCode = &country.String
		}
		if days.Valid {
			v := int(days.Int32)
			p.DaysToHire = &v
		}

		if err := fn(p); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("iterate job postings: %w", err)
	}

	span.SetAttributes(telemetry.Int("postings.count", count))
	return nil
}
