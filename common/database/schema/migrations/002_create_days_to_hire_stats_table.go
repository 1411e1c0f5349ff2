package migrations

import "daystohire/common/database/schema"

// Rows are versioned by the run that produced them; reads use FINAL so the
// highest version per (standard_job_id, scope) wins and tombstones hide the key.
var CreateDaysToHireStatsTable = schema.Migration{
	Version:     2,
	Description: "Create days_to_hire_stats table",
	Up: `
		CREATE TABLE IF NOT EXISTS days_to_hire_stats (
			standard_job_id String,
			scope LowCardinality(String),
			min_days Float64,
			avg_days Float64,
			max_days Float64,
			job_postings_count UInt32,
			version UInt64,
			is_deleted UInt8,
			computed_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(version, is_deleted)
		ORDER BY (standard_job_id, scope)
	`,
	Down: `DROP TABLE IF EXISTS days_to_hire_stats`,
}

