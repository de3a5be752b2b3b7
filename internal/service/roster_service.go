package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/tabular"
)

const (
	cacheKeyRegister = "roster:source:register"
	cacheKeySurvey   = "roster:source:survey"
	cacheKeyMerged   = "roster:merged"
)

// RosterServiceConfig tunes source caching and the rate-limit retry schedule.
type RosterServiceConfig struct {
	CacheTTL       time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// RosterService reads the Register and Survey sources and produces the merged
// roster. Fetches are serialized so a cache miss never triggers more than one
// concurrent upstream read.
type RosterService struct {
	register tabular.Source
	survey   tabular.Source
	cache    *CacheService
	logger   *zap.Logger
	cfg      RosterServiceConfig

	fetchMu sync.Mutex
	sleep   func(time.Duration)
}

// RosterServiceParams groups constructor dependencies.
type RosterServiceParams struct {
	Register tabular.Source
	Survey   tabular.Source
	Cache    *CacheService
	Logger   *zap.Logger
	Config   RosterServiceConfig
}

// NewRosterService constructs a RosterService with sane defaults.
func NewRosterService(params RosterServiceParams) *RosterService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		register: params.Register,
		survey:   params.Survey,
		cache:    params.Cache,
		logger:   logger,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// Register returns the normalized Register source rows.
func (s *RosterService) Register(ctx context.Context, refresh bool) (RosterTable, error) {
	return s.source(ctx, s.register, cacheKeyRegister, refresh)
}

// Survey returns the normalized Survey source rows.
func (s *RosterService) Survey(ctx context.Context, refresh bool) (RosterTable, error) {
	return s.source(ctx, s.survey, cacheKeySurvey, refresh)
}

// Merged returns the reconciled Register+Survey roster. The boolean reports
// whether the result was served from cache.
func (s *RosterService) Merged(ctx context.Context, refresh bool) ([]MergedRow, bool, error) {
	if !refresh {
		var cached []MergedRow
		if hit, err := s.cache.Get(ctx, cacheKeyMerged, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	// Serialize the fetch; a waiter re-checks the cache once the current
	// fetch finishes instead of hitting the sources again.
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if !refresh {
		var cached []MergedRow
		if hit, err := s.cache.Get(ctx, cacheKeyMerged, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	register, err := s.Register(ctx, refresh)
	if err != nil {
		return nil, false, err
	}
	survey, err := s.Survey(ctx, refresh)
	if err != nil {
		return nil, false, err
	}

	result := MergeRegisterSurvey(register, survey)
	for _, key := range result.DuplicateKeys {
		s.logger.Warn("duplicate register email, keeping last row's payment data",
			zap.String("email", key))
	}
	if result.RegisterMissingEmailColumn {
		s.logger.Error("register source has no detectable email column, all register rows dropped",
			zap.Strings("headers", register.Headers),
			zap.Int("rows", len(register.Rows)))
	}
	if result.SkippedRegisterRows > 0 {
		s.logger.Warn("register rows skipped for missing email",
			zap.Int("count", result.SkippedRegisterRows))
	}
	if result.SkippedSurveyRows > 0 {
		s.logger.Warn("survey rows skipped for missing email",
			zap.Int("count", result.SkippedSurveyRows))
	}

	if err := s.cache.Set(ctx, cacheKeyMerged, result.Rows, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("merged roster cache store failed", zap.Error(err))
	}
	return result.Rows, false, nil
}

// Invalidate drops all cached roster payloads.
func (s *RosterService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePatternRoster); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.Error(err))
	}
}

func (s *RosterService) source(ctx context.Context, src tabular.Source, key string, refresh bool) (RosterTable, error) {
	if src == nil {
		return RosterTable{}, appErrors.ErrNotConfigured
	}

	if !refresh {
		var cached RosterTable
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	table, err := s.readWithRetry(ctx, src)
	if err != nil {
		return RosterTable{}, err
	}

	rows := make([]Row, 0, len(table.Rows))
	for _, raw := range table.Rows {
		rows = append(rows, Row(raw))
	}
	normalized := RosterTable{Headers: table.Headers, Rows: NormalizeRows(rows)}

	if err := s.cache.Set(ctx, key, normalized, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("source cache store failed", zap.String("key", key), zap.Error(err))
	}
	return normalized, nil
}

// readWithRetry retries rate-limited reads with a doubling delay. Any other
// failure propagates immediately.
func (s *RosterService) readWithRetry(ctx context.Context, src tabular.Source) (*tabular.Table, error) {
	delay := s.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		table, err := src.Read(ctx)
		if err == nil {
			return table, nil
		}
		if !errors.Is(err, appErrors.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
		if attempt < s.cfg.RetryAttempts-1 {
			s.logger.Warn("source rate limited, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			s.sleep(delay)
			delay *= 2
		}
	}
	return nil, lastErr
}
