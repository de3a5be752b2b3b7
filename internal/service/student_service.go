package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

// Record keys produced by the overlay in addition to the merged form fields.
const (
	FieldEmail      = "email"
	FieldHasSurvey  = "Has Survey Response"
	FieldAttendance = "Attendance"
)

// allowedScalarFields are the admin-editable flat fields; assignment-grade
// fields are appended per the current lab count.
var allowedScalarFields = []string{
	FieldName,
	"Student Name",
	FieldTeacherEvaluation,
	FieldPaymentStatus,
	FieldPaymentComment,
	FieldPaymentScreenshot,
	FieldResumeLink,
	FieldOnboarding,
}

type adminStudentRepository interface {
	ListAll(ctx context.Context) ([]models.AdminStudent, error)
	Get(ctx context.Context, email string) (*models.AdminStudent, error)
	Upsert(ctx context.Context, student *models.AdminStudent) error
	MergeFields(ctx context.Context, email string, fields models.StringMap) error
}

type rosterProvider interface {
	Merged(ctx context.Context, refresh bool) ([]MergedRow, bool, error)
	Invalidate(ctx context.Context)
}

type structureProvider interface {
	Structure(ctx context.Context) (models.CourseStructure, error)
}

// ListOptions controls reconciled-roster reads.
type ListOptions struct {
	SortBy    string
	SortOrder string
	Refresh   bool
}

// BulkUpdateItem is one entry of a bulk student update.
type BulkUpdateItem struct {
	Email  string                 `json:"email" validate:"required"`
	Fields map[string]interface{} `json:"fields" validate:"required"`
}

// BulkUpdateRequest bounds the bulk endpoint payload.
type BulkUpdateRequest struct {
	Updates []BulkUpdateItem `json:"updates" validate:"required,min=1,max=100,dive"`
}

// StudentService reconciles form sources with admin records and applies
// admin edits.
type StudentService struct {
	repo      adminStudentRepository
	roster    rosterProvider
	structure structureProvider
	metrics   *MetricsService
	logger    *zap.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// StudentServiceParams groups constructor dependencies.
type StudentServiceParams struct {
	Repo      adminStudentRepository
	Roster    rosterProvider
	Structure structureProvider
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(params StudentServiceParams) *StudentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      params.Repo,
		roster:    params.Roster,
		structure: params.Structure,
		metrics:   params.Metrics,
		logger:    logger,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// List produces the reconciled roster: form rows overlaid with admin records,
// admin-only students appended, new entrants persisted. The boolean reports
// whether the form sources were served from cache.
func (s *StudentService) List(ctx context.Context, opts ListOptions) ([]models.StudentRecord, bool, error) {
	merged, cached, err := s.roster.Merged(ctx, opts.Refresh)
	if err != nil {
		return nil, false, err
	}

	start := s.now()
	admins, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("admin_students_list", time.Since(start))
	}
	adminByEmail := make(map[string]*models.AdminStudent, len(admins))
	for i := range admins {
		adminByEmail[admins[i].Email] = &admins[i]
	}

	structure, err := s.structure.Structure(ctx)
	if err != nil {
		return nil, false, err
	}

	records := make([]models.StudentRecord, 0, len(merged)+len(admins))
	seen := make(map[string]bool, len(merged))

	for _, row := range merged {
		admin := adminByEmail[row.Email]
		records = append(records, s.overlay(row, admin, structure))
		seen[row.Email] = true

		if err := s.seedAdminRecord(ctx, row, admin, structure); err != nil {
			s.logger.Warn("seeding admin record failed",
				zap.String("email", row.Email), zap.Error(err))
		}
	}

	// Admin-only students: present in the store with no form submission.
	for i := range admins {
		if seen[admins[i].Email] {
			continue
		}
		records = append(records, s.overlay(MergedRow{
			Email:  admins[i].Email,
			Fields: Row{},
		}, &admins[i], structure))
	}

	sortRecords(records, opts.SortBy, opts.SortOrder)
	return records, cached, nil
}

// Get returns one reconciled record by email.
func (s *StudentService) Get(ctx context.Context, email string) (models.StudentRecord, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid email")
	}
	records, _, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record[FieldEmail] == normalized {
			return record, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

// Emails returns the strictly valid addresses from the reconciled roster.
func (s *StudentService) Emails(ctx context.Context) ([]string, error) {
	records, _, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(records))
	for _, record := range records {
		email, _ := record[FieldEmail].(string)
		if IsValidEmail(email) {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

// Update applies an admin edit: flat fields are filtered against the
// allow-list, assignment-grade fields are folded into the nested structure,
// and an attendance map replaces matching keys. Missing records are created.
func (s *StudentService) Update(ctx context.Context, email string, payload map[string]interface{}) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return appErrors.Clone(appErrors.ErrValidation, "invalid email")
	}
	if len(payload) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "empty update")
	}

	structure, err := s.structure.Structure(ctx)
	if err != nil {
		return err
	}

	fields, flatGrades, nestedGrades, attendance, err := splitUpdatePayload(payload, structure.TotalLabs())
	if err != nil {
		return err
	}

	student, err := s.repo.Get(ctx, normalized)
	if err != nil {
		if appErrors.FromError(err).Code != appErrors.ErrNotFound.Code {
			return err
		}
		student = &models.AdminStudent{
			Email:      normalized,
			Fields:     models.StringMap{},
			Attendance: models.AttendanceMap{},
			Grades:     DefaultGrades(structure),
		}
	}

	if student.Fields == nil {
		student.Fields = models.StringMap{}
	}
	for key, value := range fields {
		student.Fields[key] = value
	}
	if student.Attendance == nil {
		student.Attendance = models.AttendanceMap{}
	}
	for classID, present := range attendance {
		student.Attendance[classID] = present
	}
	if len(nestedGrades) > 0 {
		student.Grades = MergeGrades(student.Grades, nestedGrades)
	}
	if len(flatGrades) > 0 {
		flat := FlattenGrades(structure, student.Grades)
		for key, value := range flatGrades {
			flat[key] = value
		}
		student.Grades = NestGrades(structure, flat)
	}

	if err := s.repo.Upsert(ctx, student); err != nil {
		return err
	}

	s.roster.Invalidate(ctx)
	return nil
}

// BulkUpdate applies up to 100 independent updates; one failure never aborts
// the rest.
func (s *StudentService) BulkUpdate(ctx context.Context, req BulkUpdateRequest) (*models.BatchResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk update")
	}

	result := &models.BatchResult{}
	for _, item := range req.Updates {
		if err := s.Update(ctx, item.Email, item.Fields); err != nil {
			s.logger.Warn("bulk update item failed",
				zap.String("email", item.Email), zap.Error(err))
			result.Failed++
			continue
		}
		result.Updated++
	}
	return result, nil
}

// overlay joins one merged form row with its admin record per the precedence
// rules: form name first, admin payment status first, admin-owned evaluation,
// comment, attendance and grades.
func (s *StudentService) overlay(row MergedRow, admin *models.AdminStudent, structure models.CourseStructure) models.StudentRecord {
	record := make(models.StudentRecord, len(row.Fields)+8)
	for key, value := range row.Fields {
		record[key] = value
	}
	record[FieldEmail] = row.Email
	record[FieldHasSurvey] = row.HasSurvey

	adminFields := models.StringMap{}
	grades := models.GradeTree(nil)
	attendance := models.AttendanceMap{}
	if admin != nil {
		adminFields = admin.Fields
		grades = admin.Grades
		if admin.Attendance != nil {
			attendance = admin.Attendance
		}
	}

	if name, _ := record[FieldName].(string); name == "" {
		if adminName := adminFields[FieldName]; adminName != "" {
			record[FieldName] = adminName
		}
	}

	if status := adminFields[FieldPaymentStatus]; status != "" {
		record[FieldPaymentStatus] = status
	} else if current, _ := record[FieldPaymentStatus].(string); current == "" {
		record[FieldPaymentStatus] = PaymentUnpaid
	}

	record[FieldTeacherEvaluation] = adminFields[FieldTeacherEvaluation]
	record[FieldPaymentComment] = adminFields[FieldPaymentComment]
	if link := adminFields[FieldResumeLink]; link != "" {
		record[FieldResumeLink] = link
	}
	record[FieldAttendance] = attendance

	for key, value := range FlattenGrades(structure, grades) {
		record[key] = value
	}

	return record
}

// seedAdminRecord lazily creates a record for a new entrant, or backfills
// payment proof and resume link into an existing record. Only unset fields
// are written; admin edits are never clobbered.
func (s *StudentService) seedAdminRecord(ctx context.Context, row MergedRow, admin *models.AdminStudent, structure models.CourseStructure) error {
	seed := models.StringMap{}
	setIfMissing := func(key, value string) {
		if value == "" {
			return
		}
		if admin != nil && admin.Fields[key] != "" {
			return
		}
		seed[key] = value
	}

	setIfMissing(FieldName, row.Fields[FieldName])
	setIfMissing(FieldPaymentScreenshot, row.Fields[FieldPaymentScreenshot])
	setIfMissing(FieldResumeLink, row.Fields[FieldResumeLink])
	switch strings.ToLower(row.Fields["Payment Proved"]) {
	case "yes":
		setIfMissing(FieldPaymentStatus, PaymentPaid)
	case "no":
		setIfMissing(FieldPaymentStatus, PaymentUnpaid)
	}

	if admin != nil {
		if len(seed) == 0 {
			return nil
		}
		// Only flat fields change on a backfill; a field-level merge leaves
		// concurrent grade or attendance writes alone.
		for key, value := range seed {
			admin.Fields[key] = value
		}
		return s.repo.MergeFields(ctx, row.Email, seed)
	}

	return s.repo.Upsert(ctx, &models.AdminStudent{
		Email:      row.Email,
		Fields:     seed,
		Attendance: models.AttendanceMap{},
		Grades:     DefaultGrades(structure),
	})
}

// splitUpdatePayload partitions an update into scalar fields, flat assignment
// grades, an optional nested grade tree and an attendance map, rejecting
// anything outside the allow-list shape. Unknown scalar fields are dropped
// silently.
func splitUpdatePayload(payload map[string]interface{}, totalLabs int) (models.StringMap, map[string]string, models.GradeTree, models.AttendanceMap, error) {
	allowed := make(map[string]bool, len(allowedScalarFields))
	for _, field := range allowedScalarFields {
		allowed[field] = true
	}
	assignment := make(map[string]bool, totalLabs)
	for _, field := range AssignmentFields(totalLabs) {
		assignment[field] = true
	}

	fields := models.StringMap{}
	grades := map[string]string{}
	var nested models.GradeTree
	attendance := models.AttendanceMap{}

	for key, raw := range payload {
		if key == FieldAttendance || key == "attendance" {
			rawMap, ok := raw.(map[string]interface{})
			if !ok {
				return nil, nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "attendance must be an object of class id to boolean")
			}
			for classID, rawPresent := range rawMap {
				present, ok := rawPresent.(bool)
				if !ok {
					return nil, nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "attendance values must be booleans")
				}
				attendance[classID] = present
			}
			continue
		}

		if key == "grades" {
			tree, err := parseGradeTree(raw)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			nested = tree
			continue
		}

		value, err := coerceScalar(raw)
		if err != nil {
			return nil, nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %q must be a scalar", key))
		}

		switch {
		case assignment[key]:
			grades[key] = value
		case allowed[key]:
			fields[key] = value
		}
	}

	return fields, grades, nested, attendance, nil
}

// parseGradeTree decodes a course -> module -> lab -> grade object.
func parseGradeTree(raw interface{}) (models.GradeTree, error) {
	courses, ok := raw.(map[string]interface{})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grades must be a nested object")
	}
	tree := models.GradeTree{}
	for courseID, rawModules := range courses {
		modules, ok := rawModules.(map[string]interface{})
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "grades must nest modules under each course")
		}
		tree[courseID] = map[string]map[string]string{}
		for moduleID, rawLabs := range modules {
			labs, ok := rawLabs.(map[string]interface{})
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "grades must nest labs under each module")
			}
			tree[courseID][moduleID] = map[string]string{}
			for labID, rawGrade := range labs {
				grade, err := coerceScalar(rawGrade)
				if err != nil {
					return nil, appErrors.Clone(appErrors.ErrValidation, "grade values must be scalars")
				}
				tree[courseID][moduleID][labID] = grade
			}
		}
	}
	return tree, nil
}

func coerceScalar(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("non-scalar value %T", raw)
	}
}

func sortRecords(records []models.StudentRecord, sortBy, sortOrder string) {
	key := func(record models.StudentRecord) string {
		field := FieldName
		switch sortBy {
		case "email":
			field = FieldEmail
		case "payment_status":
			field = FieldPaymentStatus
		case "timestamp":
			field = "Timestamp"
		}
		value, _ := record[field].(string)
		return strings.ToLower(value)
	}
	desc := strings.EqualFold(sortOrder, "desc")
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return key(records[i]) > key(records[j])
		}
		return key(records[i]) < key(records[j])
	})
}
