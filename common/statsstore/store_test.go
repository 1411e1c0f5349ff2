package statsstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"daystohire/common/models"
	"daystohire/common/statsstore"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsColumns = []string{"standard_job_id", "scope", "min_days", "avg_days", "max_days", "job_postings_count"}

func newMockStore(t *testing.T) (*statsstore.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return statsstore.New(db), mock
}

func TestStore_Upsert(t *testing.T) {
	s, mock := newMockStore(t)

	row := models.StatsRow{
		Key:              models.Key{StandardJobID: "job-1", Scope: models.Country("DE")},
		MinDays:          4,
		AvgDays:          11,
		MaxDays:          18,
		JobPostingsCount: 15,
	}

	mock.ExpectExec("INSERT INTO days_to_hire_stats").
		WithArgs("job-1", "DE", 4.0, 11.0, 18.0, uint32(15), uint64(42), uint8(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), row, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertWorldUsesSentinel(t *testing.T) {
	s, mock := newMockStore(t)

	row := models.StatsRow{Key: models.Key{StandardJobID: "job-1"}, MinDays: 1, AvgDays: 1, MaxDays: 1, JobPostingsCount: 5}

	mock.ExpectExec("INSERT INTO days_to_hire_stats").
		WithArgs("job-1", models.WorldScope, 1.0, 1.0, 1.0, uint32(5), uint64(7), uint8(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), row, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteWritesTombstone(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO days_to_hire_stats").
		WithArgs("job-1", "US", 0.0, 0.0, 0.0, uint32(0), uint64(9), uint8(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	key := models.Key{StandardJobID: "job-1", Scope: models.Country("US")}
	require.NoError(t, s.Delete(context.Background(), key, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	cause := errors.New("TOO_MANY_PARTS")

	mock.ExpectExec("INSERT INTO days_to_hire_stats").WillReturnError(cause)

	err := s.Upsert(context.Background(), models.StatsRow{Key: models.Key{StandardJobID: "job-1"}}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "job-1/WORLD")
}

func TestStore_Get(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM days_to_hire_stats FINAL").
		WithArgs("job-1", "WORLD").
		WillReturnRows(sqlmock.NewRows(statsColumns).AddRow("job-1", "WORLD", 2.0, 5.5, 9.0, 12))

	got, err := s.Get(context.Background(), models.Key{StandardJobID: "job-1", Scope: models.World()})
	require.NoError(t, err)

	assert.Equal(t, models.StatsRow{
		Key:              models.Key{StandardJobID: "job-1", Scope: models.World()},
		MinDays:          2,
		AvgDays:          5.5,
		MaxDays:          9,
		JobPostingsCount: 12,
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM days_to_hire_stats FINAL").
		WithArgs("job-1", "ZZ").
		WillReturnRows(sqlmock.NewRows(statsColumns))

	_, err := s.Get(context.Background(), models.Key{StandardJobID: "job-1", Scope: models.Country("ZZ")})
	assert.ErrorIs(t, err, statsstore.ErrNotFound)
}

func TestStore_GetConnectionError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM days_to_hire_stats FINAL").WillReturnError(sql.ErrConnDone)

	_, err := s.Get(context.Background(), models.Key{StandardJobID: "job-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, statsstore.ErrNotFound)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStore_List(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("WHERE is_deleted = 0").
		WillReturnRows(sqlmock.NewRows(statsColumns).
			AddRow("job-1", "DE", 4.0, 11.0, 18.0, 15).
			AddRow("job-1", "WORLD", 3.0, 10.0, 17.0, 20))

	rows, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.Country("DE"), rows[0].Scope)
	assert.True(t, rows[1].Scope.IsWorld())
	assert.Equal(t, 20, rows[1].JobPostingsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRejectsEmptyScope(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("WHERE is_deleted = 0").
		WillReturnRows(sqlmock.NewRows(statsColumns).AddRow("job-1", "", 1.0, 1.0, 1.0, 5))

	_, err := s.List(context.Background())
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "days_to_hire:job-1:WORLD", statsstore.CacheKey(models.Key{StandardJobID: "job-1"}))
	assert.Equal(t, "days_to_hire:job-1:DE", statsstore.CacheKey(models.Key{StandardJobID: "job-1", Scope: models.Country("DE")}))
}
