package query_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"daystohire/common/cache"
	"daystohire/common/cache/redis"
	domainerrors "daystohire/common/errors"
	"daystohire/common/models"
	"daystohire/common/statsstore"
	"daystohire/services/api/internal/query"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	rows  map[models.Key]models.StatsRow
	err   error
	calls int
}

func (s *fakeStore) Get(_ context.Context, key models.Key) (models.StatsRow, error) {
	s.calls++
	if s.err != nil {
		return models.StatsRow{}, s.err
	}
	row, ok := s.rows[key]
	if !ok {
		return models.StatsRow{}, statsstore.ErrNotFound
	}
	return row, nil
}

func ptr[T any](v T) *T { return &v }

var (
	worldRow = models.StatsRow{Key: models.Key{StandardJobID: "job-1"}, MinDays: 3, AvgDays: 10.5, MaxDays: 18, JobPostingsCount: 16}
	deRow    = models.StatsRow{Key: models.Key{StandardJobID: "job-1", Scope: models.Country("DE")}, MinDays: 4, AvgDays: 9, MaxDays: 14, JobPostingsCount: 6}
)

func newStore() *fakeStore {
	return &fakeStore{rows: map[models.Key]models.StatsRow{worldRow.Key: worldRow, deRow.Key: deRow}}
}

func newCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	c := redis.New(cache.Options{RedisURL: srv.Addr(), DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestLookup_WorldWhenCountryOmitted(t *testing.T) {
	svc := query.NewService(newStore(), nil, 0, zaptest.NewLogger(t))

	for _, country := range []*string{nil, ptr(""), ptr("  ")} {
		row, err := svc.Lookup(context.Background(), "job-1", country)
		require.NoError(t, err)
		assert.Equal(t, worldRow, *row)
	}
}

func TestLookup_Country(t *testing.T) {
	svc := query.NewService(newStore(), nil, 0, zaptest.NewLogger(t))

	row, err := svc.Lookup(context.Background(), "job-1", ptr("DE"))
	require.NoError(t, err)
	assert.Equal(t, deRow, *row)
}

func TestLookup_CountryIsMatchedExactly(t *testing.T) {
	svc := query.NewService(newStore(), nil, 0, zaptest.NewLogger(t))

	_, err := svc.Lookup(context.Background(), "job-1", ptr("de"))
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestLookup_MalformedCountryNeverReachesWorldRow(t *testing.T) {
	for _, code := range []string{"WORLD", "world", " DE", "DE ", "DEU"} {
		store := newStore()
		svc := query.NewService(store, nil, 0, zaptest.NewLogger(t))

		row, err := svc.Lookup(context.Background(), "job-1", ptr(code))

		assert.Nil(t, row, code)
		assert.True(t, domainerrors.IsNotFound(err), code)
		assert.Contains(t, err.Error(), "country_code: "+code, code)
		assert.Zero(t, store.calls, code)
	}
}

func TestLookup_MissingJobID(t *testing.T) {
	store := newStore()
	svc := query.NewService(store, nil, 0, zaptest.NewLogger(t))

	_, err := svc.Lookup(context.Background(), " ", nil)

	assert.Equal(t, domainerrors.ErrTypeInvalidInput, domainerrors.TypeOf(err))
	assert.Zero(t, store.calls)
}

func TestLookup_NotFound(t *testing.T) {
	svc := query.NewService(newStore(), nil, 0, zaptest.NewLogger(t))

	_, err := svc.Lookup(context.Background(), "job-404", ptr("US"))

	require.Error(t, err)
	assert.True(t, domainerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "standard_job_id: job-404 and country_code: US")
}

func TestLookup_StoreErrors(t *testing.T) {
	store := newStore()
	svc := query.NewService(store, nil, 0, zaptest.NewLogger(t))

	store.err = driver.ErrBadConn
	_, err := svc.Lookup(context.Background(), "job-1", nil)
	assert.Equal(t, domainerrors.ErrTypeUnavailable, domainerrors.TypeOf(err))

	store.err = errors.New("syntax error")
	_, err = svc.Lookup(context.Background(), "job-1", nil)
	assert.Equal(t, domainerrors.ErrTypeInternal, domainerrors.TypeOf(err))
}

func TestLookup_ReadsThroughCache(t *testing.T) {
	store := newStore()
	c, srv := newCache(t)
	svc := query.NewService(store, c, 2*time.Minute, zaptest.NewLogger(t))

	first, err := svc.Lookup(context.Background(), "job-1", ptr("DE"))
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "job-1", ptr("DE"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 2*time.Minute, srv.TTL("days_to_hire:job-1:DE"))
}

func TestLookup_CacheOutageFallsBackToStore(t *testing.T) {
	store := newStore()
	c, srv := newCache(t)
	svc := query.NewService(store, c, time.Minute, zaptest.NewLogger(t))
	srv.Close()

	row, err := svc.Lookup(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.Equal(t, worldRow, *row)
	assert.Equal(t, 1, store.calls)
}
