package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

const (
	cacheKeyCourseContent   = "course:content"
	cacheKeyCourseStructure = "course:structure"
	cachePatternCourse      = "course:*"
	cachePatternRoster      = "roster:*"
)

const (
	maxLabsPerModule = 100
	maxLabsTotal     = 500
)

type courseContentRepository interface {
	Get(ctx context.Context) (*models.CourseContent, error)
	Save(ctx context.Context, doc models.JSONDoc) (*models.CourseContent, error)
}

// gradeSyncTrigger kicks off a background grade-structure reconciliation.
type gradeSyncTrigger interface {
	TriggerSync(reason string)
}

// CourseServiceConfig tunes extraction fallbacks and caching.
type CourseServiceConfig struct {
	DefaultLabCount int
	CacheTTL        time.Duration
}

// CourseService owns the course content document and the derived
// course/module/lab structure.
type CourseService struct {
	repo   courseContentRepository
	cache  *CacheService
	syncer gradeSyncTrigger
	logger *zap.Logger
	cfg    CourseServiceConfig
}

// CourseServiceParams groups constructor dependencies.
type CourseServiceParams struct {
	Repo   courseContentRepository
	Cache  *CacheService
	Syncer gradeSyncTrigger
	Logger *zap.Logger
	Config CourseServiceConfig
}

// NewCourseService constructs a CourseService with sane defaults.
func NewCourseService(params CourseServiceParams) *CourseService {
	cfg := params.Config
	if cfg.DefaultLabCount <= 0 {
		cfg.DefaultLabCount = 2
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:   params.Repo,
		cache:  params.Cache,
		syncer: params.Syncer,
		logger: logger,
		cfg:    cfg,
	}
}

// SetSyncer attaches the grade-structure synchronizer after construction.
// The synchronizer itself reads the structure from this service, so one of
// the two has to be wired late.
func (s *CourseService) SetSyncer(trigger gradeSyncTrigger) {
	s.syncer = trigger
}

// Get returns the course content document, serving from cache when possible.
func (s *CourseService) Get(ctx context.Context) (*models.CourseContent, bool, error) {
	var cached models.CourseContent
	if hit, err := s.cache.Get(ctx, cacheKeyCourseContent, &cached); err == nil && hit {
		return &cached, true, nil
	}

	content, err := s.repo.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, cacheKeyCourseContent, content, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("course content cache store failed", zap.Error(err))
	}
	return content, false, nil
}

// Save replaces the course document, invalidates derived caches and triggers
// a grade-structure sync so every student record follows the new schema.
func (s *CourseService) Save(ctx context.Context, doc models.JSONDoc) (*models.CourseContent, error) {
	if doc == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course document is required")
	}

	content, err := s.repo.Save(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, cachePatternCourse); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, cachePatternRoster); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.Error(err))
	}

	if s.syncer != nil {
		s.syncer.TriggerSync("course content updated")
	}

	return content, nil
}

// Structure returns the current course/module/lab schema. An extraction that
// yields zero lab slots falls back to a single default course sized by the
// configured lab count.
func (s *CourseService) Structure(ctx context.Context) (models.CourseStructure, error) {
	var cached models.CourseStructure
	if hit, err := s.cache.Get(ctx, cacheKeyCourseStructure, &cached); err == nil && hit {
		return cached, nil
	}

	content, _, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	structure := ExtractStructure(content.Doc)
	if structure.TotalLabs() == 0 {
		structure = models.CourseStructure{{
			CourseID: "course1",
			Modules:  []models.ModuleLabs{{ModuleID: "module1", LabCount: s.cfg.DefaultLabCount}},
		}}
	}

	if err := s.cache.Set(ctx, cacheKeyCourseStructure, structure, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("course structure cache store failed", zap.Error(err))
	}
	return structure, nil
}

// ExtractStructure walks the course document and derives the ordered
// course -> module -> lab-count schema. Courses and modules whose isVisible
// is explicitly false are excluded. Lab counts are coerced to integers and
// clamped to [0,100] per module; the grand total is capped at 500 by
// truncating later modules.
func ExtractStructure(doc models.JSONDoc) models.CourseStructure {
	if doc == nil {
		return nil
	}

	var structure models.CourseStructure

	if rawCourses, ok := doc["courses"].([]interface{}); ok {
		for i, rawCourse := range rawCourses {
			course, ok := rawCourse.(map[string]interface{})
			if !ok || !isVisible(course) {
				continue
			}
			id := coerceString(course["id"])
			if id == "" {
				id = "course" + strconv.Itoa(i+1)
			}
			modules := extractModules(course["modules"])
			if len(modules) > 0 {
				structure = append(structure, models.CourseModules{CourseID: id, Modules: modules})
			}
		}
	} else if rawModules, ok := doc["modules"]; ok {
		// Legacy single-course document shape.
		modules := extractModules(rawModules)
		if len(modules) > 0 {
			id := coerceString(doc["id"])
			if id == "" {
				id = "course1"
			}
			structure = append(structure, models.CourseModules{CourseID: id, Modules: modules})
		}
	}

	return clampTotal(structure, maxLabsTotal)
}

func extractModules(raw interface{}) []models.ModuleLabs {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	modules := make([]models.ModuleLabs, 0, len(items))
	for i, rawModule := range items {
		module, ok := rawModule.(map[string]interface{})
		if !ok || !isVisible(module) {
			continue
		}
		id := coerceString(module["id"])
		if id == "" {
			id = "module" + strconv.Itoa(i+1)
		}
		count := coerceInt(module["labCount"])
		if count < 0 {
			count = 0
		}
		if count > maxLabsPerModule {
			count = maxLabsPerModule
		}
		modules = append(modules, models.ModuleLabs{ModuleID: id, LabCount: count})
	}
	return modules
}

func clampTotal(structure models.CourseStructure, limit int) models.CourseStructure {
	total := 0
	for ci := range structure {
		for mi := range structure[ci].Modules {
			remaining := limit - total
			if structure[ci].Modules[mi].LabCount > remaining {
				structure[ci].Modules[mi].LabCount = remaining
			}
			total += structure[ci].Modules[mi].LabCount
		}
	}
	return structure
}

func isVisible(item map[string]interface{}) bool {
	visible, ok := item["isVisible"].(bool)
	return !ok || visible
}

func coerceString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func coerceInt(raw interface{}) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
