package service

import (
	"context"
	"math"

	"github.com/noah-isme/course-ops-api/internal/models"
)

// OperationsService derives dashboard aggregates from the reconciled roster.
type OperationsService struct {
	students  *StudentService
	structure structureProvider
}

// NewOperationsService constructs an OperationsService.
func NewOperationsService(students *StudentService, structure structureProvider) *OperationsService {
	return &OperationsService{students: students, structure: structure}
}

// Metrics computes the dashboard aggregate for the current roster.
func (s *OperationsService) Metrics(ctx context.Context) (*models.OperationsMetrics, error) {
	records, _, err := s.students.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	metrics := CalculateMetrics(records)
	return &metrics, nil
}

// Status computes the missing-item lists for the current roster.
func (s *OperationsService) Status(ctx context.Context) (*models.OperationsStatus, error) {
	records, _, err := s.students.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	structure, err := s.structure.Structure(ctx)
	if err != nil {
		return nil, err
	}
	status := CalculateStatus(records, structure.TotalLabs())
	return &status, nil
}

// CalculateMetrics is a pure function over the reconciled list.
// paid + unpaid always equals the total; the onboarding percentage is
// has-resume over total, rounded to two decimals.
func CalculateMetrics(records []models.StudentRecord) models.OperationsMetrics {
	metrics := models.OperationsMetrics{TotalStudents: len(records)}
	for _, record := range records {
		if recordString(record, FieldPaymentStatus) == PaymentPaid {
			metrics.Paid++
		}
		if hasResume(record) {
			metrics.HasResume++
		}
		if surveyed, _ := record[FieldHasSurvey].(bool); surveyed {
			metrics.SurveyFilled++
		}
	}
	metrics.Unpaid = metrics.TotalStudents - metrics.Paid
	if metrics.TotalStudents > 0 {
		pct := float64(metrics.HasResume) / float64(metrics.TotalStudents) * 100
		metrics.OnboardingPercentage = math.Round(pct*100) / 100
	}
	return metrics
}

// CalculateStatus is a pure function listing, per check, every student that
// fails it. Grade detail names the empty assignment slots.
func CalculateStatus(records []models.StudentRecord, totalLabs int) models.OperationsStatus {
	status := models.OperationsStatus{
		MissingPayment:    []models.MissingItem{},
		MissingResume:     []models.MissingItem{},
		MissingAttendance: []models.MissingItem{},
		MissingGrades:     []models.MissingItem{},
	}
	fields := AssignmentFields(totalLabs)

	for _, record := range records {
		item := models.MissingItem{
			Email: recordString(record, FieldEmail),
			Name:  recordString(record, FieldName),
		}

		if recordString(record, FieldPaymentStatus) != PaymentPaid {
			status.MissingPayment = append(status.MissingPayment, item)
		}
		if !hasResume(record) {
			status.MissingResume = append(status.MissingResume, item)
		}
		if !hasAnyAttendance(record) {
			status.MissingAttendance = append(status.MissingAttendance, item)
		}

		var empty []string
		for _, field := range fields {
			if recordString(record, field) == "" {
				empty = append(empty, field)
			}
		}
		if len(empty) > 0 {
			withDetail := item
			withDetail.Detail = empty
			status.MissingGrades = append(status.MissingGrades, withDetail)
		}
	}
	return status
}

func hasResume(record models.StudentRecord) bool {
	link := recordString(record, FieldResumeLink)
	return link != "" && link != "N/A"
}

func hasAnyAttendance(record models.StudentRecord) bool {
	attendance, ok := record[FieldAttendance].(models.AttendanceMap)
	if !ok {
		// Cached records round-trip through JSON as generic maps.
		generic, ok := record[FieldAttendance].(map[string]interface{})
		if !ok {
			return false
		}
		for _, raw := range generic {
			if present, _ := raw.(bool); present {
				return true
			}
		}
		return false
	}
	for _, present := range attendance {
		if present {
			return true
		}
	}
	return false
}

func recordString(record models.StudentRecord, key string) string {
	value, _ := record[key].(string)
	return value
}
