package migrations

import "daystohire/common/database/schema"

var CreateJobPostingTable = schema.Migration{
	Version:     1,
	Description: "Create job_posting table",
	Up: `
		CREATE TABLE IF NOT EXISTS job_posting (
			id String,
			title String,
			standard_job_id String,
			country_code Nullable(String),
			days_to_hire Nullable(Int32),
			created_at DateTime,
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (standard_job_id, id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS job_posting`,
}
