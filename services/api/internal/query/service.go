// Package query answers days-to-hire lookups from the statistics store,
// reading through the Redis cache.
package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"daystohire/common/cache"
	"daystohire/common/database"
	"daystohire/common/errors"
	"daystohire/common/models"
	"daystohire/common/statsstore"
	"daystohire/common/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("daystohire/api/query")

type Store interface {
	Get(ctx context.Context, key models.Key) (models.StatsRow, error)
}

type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService returns a lookup service. c may be nil to always read the store.
func NewService(store Store, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{store: store, cache: c, cacheTTL: cacheTTL, logger: logger}
}

// Lookup returns the statistics for standardJobID in the country given by
// countryCode, or the world aggregate when countryCode is nil or blank.
// Country codes are matched exactly: padded or malformed codes, WORLD among
// them, are never looked up and report not found.
func (s *Service) Lookup(ctx context.Context, standardJobID string, countryCode *string) (*models.StatsRow, error) {
	ctx, span := tracer.Start(ctx, "Service.Lookup")
	defer span.End()

	standardJobID = strings.TrimSpace(standardJobID)
	if standardJobID == "" {
		return nil, errors.InvalidInput("standard_job_id is required", nil)
	}

	scope := models.World()
	if countryCode != nil && strings.TrimSpace(*countryCode) != "" {
		if !models.IsCountryCode(*countryCode) {
			return nil, notFound(standardJobID, *countryCode, nil)
		}
		scope = models.Country(*countryCode)
	}

	key := models.Key{StandardJobID: standardJobID, Scope: scope}
	span.SetAttributes(
		telemetry.String("standard_job_id", key.StandardJobID),
		telemetry.String("scope", key.Scope.String()),
	)

	if row, ok := s.fromCache(ctx, key); ok {
		span.SetAttributes(telemetry.String("cache", "hit"))
		return row, nil
	}

	row, err := s.store.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, classify(key, err)
	}

	s.toCache(ctx, key, row)
	return &row, nil
}

func classify(key models.Key, err error) error {
	switch {
	case stderrors.Is(err, statsstore.ErrNotFound):
		country, _ := key.Scope.CountryCode()
		return notFound(key.StandardJobID, country, err)
	case database.IsTransient(err):
		return errors.Unavailable("statistics store unavailable", err)
	default:
		return errors.Internal("reading statistics", err)
	}
}

func notFound(standardJobID, country string, err error) error {
	return errors.NotFound(fmt.Sprintf("No statistics found for standard_job_id: %s and country_code: %s",
		standardJobID, displayCountry(country)), err)
}

func displayCountry(code string) string {
	if code == "" {
		return "None"
	}
	return code
}

func (s *Service) fromCache(ctx context.Context, key models.Key) (*models.StatsRow, bool) {
	if s.cache == nil {
		return nil, false
	}

	var row models.StatsRow
	err := s.cache.Get(ctx, statsstore.CacheKey(key), &row)
	switch {
	case err == nil:
		return &row, true
	case stderrors.Is(err, cache.ErrNotFound):
	default:
		s.logger.Warn("cache read failed, falling back to store",
			zap.String("key", key.String()),
			zap.Error(err))
	}
	return nil, false
}

func (s *Service) toCache(ctx context.Context, key models.Key, row models.StatsRow) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, statsstore.CacheKey(key), row, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed",
			zap.String("key", key.String()),
			zap.Error(err))
	}
}
