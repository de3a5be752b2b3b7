package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

type classSessionRepository interface {
	List(ctx context.Context) ([]models.ClassSession, error)
	Get(ctx context.Context, id string) (*models.ClassSession, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Delete(ctx context.Context, id string) error
}

type attendanceWriter interface {
	ListAll(ctx context.Context) ([]models.AdminStudent, error)
	SetAttendance(ctx context.Context, email, classID string, present bool) error
	RemoveAttendanceKey(ctx context.Context, classID string) (int, error)
}

// MarkAttendanceRequest is the mark-attendance payload. An empty list is
// valid: it marks everyone absent.
type MarkAttendanceRequest struct {
	PresentEmails []string `json:"present_emails"`
}

// CreateClassRequest is the class-session creation payload.
type CreateClassRequest struct {
	Date        string `json:"date" validate:"required"`
	Topic       string `json:"topic" validate:"required"`
	Description string `json:"description"`
}

// AttendanceService manages class sessions and marks attendance across all
// known students, guarded by a per-class lock so concurrent submissions for
// the same session are rejected instead of interleaved.
type AttendanceService struct {
	classes  classSessionRepository
	students attendanceWriter
	cache    *CacheService
	logger   *zap.Logger
	validate *validator.Validate

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// AttendanceServiceParams groups constructor dependencies.
type AttendanceServiceParams struct {
	Classes  classSessionRepository
	Students attendanceWriter
	Cache    *CacheService
	Logger   *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(params AttendanceServiceParams) *AttendanceService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		classes:  params.Classes,
		students: params.Students,
		cache:    params.Cache,
		logger:   logger,
		validate: validator.New(),
		locks:    map[string]*sync.Mutex{},
	}
}

// ListClasses returns all sessions, most recent first.
func (s *AttendanceService) ListClasses(ctx context.Context) ([]models.ClassSession, error) {
	return s.classes.List(ctx)
}

// CreateClass persists a new class session.
func (s *AttendanceService) CreateClass(ctx context.Context, req CreateClassRequest) (*models.ClassSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class session")
	}
	session := &models.ClassSession{
		Date:        req.Date,
		Topic:       req.Topic,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.classes.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteClass removes a session and cascades deletion of its key from every
// student's attendance map.
func (s *AttendanceService) DeleteClass(ctx context.Context, classID string) error {
	if err := s.classes.Delete(ctx, classID); err != nil {
		return err
	}
	touched, err := s.students.RemoveAttendanceKey(ctx, classID)
	if err != nil {
		return err
	}
	s.logger.Info("class session deleted",
		zap.String("class_id", classID),
		zap.Int("attendance_entries_removed", touched))
	s.invalidateRoster(ctx)
	return nil
}

// Mark applies the present-list to every known student for one class session.
// Outcomes: duplicate_request when the class lock is already held, no_changes
// when every stored value already matches, completed when at least one
// student was rewritten, failed when there are no students or writes report
// failures. Already-correct values are never rewritten.
func (s *AttendanceService) Mark(ctx context.Context, classID string, req MarkAttendanceRequest) (*models.AttendanceResult, error) {
	if _, err := s.classes.Get(ctx, classID); err != nil {
		return nil, err
	}

	release, ok := s.acquire(classID)
	if !ok {
		return &models.AttendanceResult{
			Status:  models.AttendanceDuplicateRequest,
			Message: "attendance marking already in progress for this class",
		}, nil
	}
	defer release()

	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return &models.AttendanceResult{
			Status:  models.AttendanceFailed,
			Message: "no students to mark",
		}, nil
	}

	present := make(map[string]bool, len(req.PresentEmails))
	for _, raw := range req.PresentEmails {
		if email := NormalizeEmail(raw); email != "" {
			present[email] = true
		}
	}

	result := &models.AttendanceResult{Status: models.AttendanceNoChanges}
	for i := range students {
		desired := present[students[i].Email]
		current := students[i].Attendance[classID]
		if current == desired {
			result.Skipped++
			continue
		}
		if err := s.students.SetAttendance(ctx, students[i].Email, classID, desired); err != nil {
			s.logger.Warn("attendance write failed",
				zap.String("email", students[i].Email),
				zap.String("class_id", classID),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Updated++
	}

	switch {
	case result.Failed > 0:
		result.Status = models.AttendanceFailed
	case result.Updated > 0:
		result.Status = models.AttendanceCompleted
	}

	if result.Updated > 0 {
		s.invalidateRoster(ctx)
	}
	return result, nil
}

// acquire takes the per-class lock without blocking. Lock entries are created
// lazily and reused, bounded by class cardinality.
func (s *AttendanceService) acquire(classID string) (func(), bool) {
	s.lockMu.Lock()
	lock, ok := s.locks[classID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[classID] = lock
	}
	s.lockMu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

func (s *AttendanceService) invalidateRoster(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePatternRoster); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.Error(err))
	}
}
