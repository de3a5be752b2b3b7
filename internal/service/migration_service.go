package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ops-api/internal/models"
	"github.com/noah-isme/course-ops-api/pkg/jobs"
)

const gradeSyncJobType = "grade-structure-sync"

type gradeMigrationRepository interface {
	ListAll(ctx context.Context) ([]models.AdminStudent, error)
	BatchUpdateGrades(ctx context.Context, updates []models.GradeUpdate) error
}

// MigrationServiceConfig tunes batching and the background queue.
type MigrationServiceConfig struct {
	BatchSize  int
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// SyncStatus reports the state of the grade-structure synchronizer.
type SyncStatus struct {
	Running    bool                    `json:"running"`
	LastRunAt  *time.Time              `json:"last_run_at,omitempty"`
	LastResult *models.MigrationResult `json:"last_result,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
}

// MigrationService keeps every AdminStudent's nested grade structure
// congruent with the current course schema. Runs execute on a background
// queue; course-content writes trigger them.
type MigrationService struct {
	repo      gradeMigrationRepository
	structure structureProvider
	cache     *CacheService
	logger    *zap.Logger
	cfg       MigrationServiceConfig
	queue     *jobs.Queue

	mu     sync.Mutex
	status SyncStatus
	now    func() time.Time
}

// MigrationServiceParams groups constructor dependencies.
type MigrationServiceParams struct {
	Repo      gradeMigrationRepository
	Structure structureProvider
	Cache     *CacheService
	Logger    *zap.Logger
	Config    MigrationServiceConfig
}

// NewMigrationService constructs the service and its queue; call Start
// before triggering syncs.
func NewMigrationService(params MigrationServiceParams) *MigrationService {
	cfg := params.Config
	if cfg.BatchSize <= 0 || cfg.BatchSize > 500 {
		cfg.BatchSize = 500
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MigrationService{
		repo:      params.Repo,
		structure: params.Structure,
		cache:     params.Cache,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue(gradeSyncJobType, s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins background processing.
func (s *MigrationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *MigrationService) Stop() {
	s.queue.Stop()
}

// TriggerSync enqueues a background reconciliation run.
func (s *MigrationService) TriggerSync(reason string) {
	job := jobs.Job{ID: uuid.NewString(), Type: gradeSyncJobType, Payload: reason}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("grade sync enqueue failed", zap.String("reason", reason), zap.Error(err))
	}
}

// Status returns a snapshot of the synchronizer state.
func (s *MigrationService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *MigrationService) handleJob(ctx context.Context, job jobs.Job) error {
	reason, _ := job.Payload.(string)
	s.logger.Info("grade structure sync started", zap.String("reason", reason))
	_, err := s.Run(ctx)
	return err
}

// Run reconciles every student record against the current structure. Each
// record is rebuilt independently; batches of at most BatchSize writes commit
// sequentially, and a failed batch is counted without aborting the rest.
// With an unchanged schema the run is a no-op.
func (s *MigrationService) Run(ctx context.Context) (*models.MigrationResult, error) {
	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()

	result, err := s.run(ctx)

	s.mu.Lock()
	s.status.Running = false
	runAt := s.now().UTC()
	s.status.LastRunAt = &runAt
	s.status.LastResult = result
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	return result, err
}

func (s *MigrationService) run(ctx context.Context) (*models.MigrationResult, error) {
	structure, err := s.structure.Structure(ctx)
	if err != nil {
		return nil, err
	}

	students, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.MigrationResult{StudentsScanned: len(students)}
	var pending []models.GradeUpdate

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.repo.BatchUpdateGrades(ctx, pending); err != nil {
			s.logger.Warn("grade batch failed", zap.Int("size", len(pending)), zap.Error(err))
			result.Errors += len(pending)
		} else {
			result.StudentsChanged += len(pending)
		}
		pending = pending[:0]
	}

	for i := range students {
		rebuilt, added, removed := RebuildGrades(structure, students[i].Grades)
		if added == 0 && removed == 0 {
			continue
		}
		result.FieldsAdded += added
		result.FieldsRemoved += removed
		pending = append(pending, models.GradeUpdate{Email: students[i].Email, Grades: rebuilt})
		if len(pending) >= s.cfg.BatchSize {
			flush()
		}
	}
	flush()

	if result.StudentsChanged > 0 {
		if err := s.cache.Invalidate(ctx, cachePatternRoster); err != nil {
			s.logger.Warn("roster cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("grade structure sync finished",
		zap.Int("scanned", result.StudentsScanned),
		zap.Int("changed", result.StudentsChanged),
		zap.Int("added", result.FieldsAdded),
		zap.Int("removed", result.FieldsRemoved),
		zap.Int("errors", result.Errors))

	return result, nil
}
