// Package statsstore persists the latest days-to-hire statistics per
// (standard_job_id, scope) in ClickHouse.
//
// The table is a ReplacingMergeTree keyed by (standard_job_id, scope) and
// versioned by the run that wrote the row. Every write is a single-row insert,
// which ClickHouse applies atomically, and every read uses FINAL, so a reader
// sees either the previous row or the new one. Deletes insert a tombstone
// (is_deleted = 1) with a higher version instead of removing data, which keeps
// the key from ever passing through a half-written state.
package statsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"daystohire/common/models"
)

var ErrNotFound = errors.New("statistics not found")

const (
	insertQuery = `
		INSERT INTO days_to_hire_stats (
			standard_job_id, scope, min_days, avg_days, max_days,
			job_postings_count, version, is_deleted, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectColumns = `standard_job_id, scope, min_days, avg_days, max_days, job_postings_count`

	getQuery = `SELECT ` + selectColumns + `
		FROM days_to_hire_stats FINAL
		WHERE standard_job_id = ? AND scope = ? AND is_deleted = 0
		LIMIT 1`

	listQuery = `SELECT ` + selectColumns + `
		FROM days_to_hire_stats FINAL
		WHERE is_deleted = 0
		ORDER BY standard_job_id, scope`
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Upsert replaces the row stored under row.Key. Rows written with a lower
// version than the current one are ignored on read.
func (s *Store) Upsert(ctx context.Context, row models.StatsRow, version uint64) error {
	if err := s.insert(ctx, row, version, false); err != nil {
		return fmt.Errorf("upsert %s: %w", row.Key, err)
	}
	return nil
}

// Delete hides key from every subsequent read.
func (s *Store) Delete(ctx context.Context, key models.Key, version uint64) error {
	if err := s.insert(ctx, models.StatsRow{Key: key}, version, true); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, row models.StatsRow, version uint64, deleted bool) error {
	var isDeleted uint8
	if deleted {
		isDeleted = 1
	}

	_, err := s.db.ExecContext(ctx, insertQuery,
		row.StandardJobID,
		row.Scope.String(),
		row.MinDays,
		row.AvgDays,
		row.MaxDays,
		uint32(row.JobPostingsCount),
		version,
		isDeleted,
		s.now().UTC(),
	)
	return err
}

// Get returns the live row for key or ErrNotFound.
func (s *Store) Get(ctx context.Context, key models.Key) (models.StatsRow, error) {
	row := s.db.QueryRowContext(ctx, getQuery, key.StandardJobID, key.Scope.String())

	stats, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatsRow{}, ErrNotFound
	}
	if err != nil {
		return models.StatsRow{}, fmt.Errorf("get %s: %w", key, err)
	}
	return stats, nil
}

// List returns every live row ordered by key.
func (s *Store) List(ctx context.Context) ([]models.StatsRow, error) {
	rows, err := s.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("list statistics: %w", err)
	}
	defer rows.Close()

	var out []models.StatsRow
	for rows.Next() {
		stats, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statistics row: %w", err)
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (models.StatsRow, error) {
	var (
		jobID string
		scope string
		count uint32
		row   models.StatsRow
	)
	if err := sc.Scan(&jobID, &scope, &row.MinDays, &row.AvgDays, &row.MaxDays, &count); err != nil {
		return models.StatsRow{}, err
	}

	parsed, err := models.ParseScope(scope)
	if err != nil {
		return models.StatsRow{}, fmt.Errorf("row for %s: %w", jobID, err)
	}

	row.Key = models.Key{StandardJobID: jobID, Scope: parsed}
	row.JobPostingsCount = int(count)
	return row, nil
}

// CacheKeyPrefix starts every cache entry holding a statistics row.
const CacheKeyPrefix = "days_to_hire:"

// CacheKey is the cache entry name shared by the writer and the readers.
func CacheKey(key models.Key) string {
	return CacheKeyPrefix + key.StandardJobID + ":" + key.Scope.String()
}
