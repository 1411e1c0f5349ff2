package migrations

import "daystohire/common/database/schema"

// All lists every migration in version order.
var All = []schema.Migration{
	CreateJobPostingTable,
	CreateDaysToHireStatsTable,
}
