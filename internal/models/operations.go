package models

import "time"

// OperationsMetrics is the dashboard aggregate over the reconciled roster.
type OperationsMetrics struct {
	TotalStudents        int     `json:"total_students"`
	Paid                 int     `json:"paid"`
	Unpaid               int     `json:"unpaid"`
	HasResume            int     `json:"has_resume"`
	OnboardingPercentage float64 `json:"onboarding_percentage"`
	SurveyFilled         int     `json:"survey_filled"`
}

// MissingItem identifies one student failing a status check, with optional
// per-check detail (e.g. which assignment slots are empty).
type MissingItem struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Detail []string `json:"detail,omitempty"`
}

// OperationsStatus lists students missing each tracked item.
type OperationsStatus struct {
	MissingPayment    []MissingItem `json:"missing_payment"`
	MissingResume     []MissingItem `json:"missing_resume"`
	MissingAttendance []MissingItem `json:"missing_attendance"`
	MissingGrades     []MissingItem `json:"missing_grades"`
}

// MigrationResult summarizes one grade-structure reconciliation run.
type MigrationResult struct {
	StudentsScanned int `json:"students_scanned"`
	StudentsChanged int `json:"students_changed"`
	FieldsAdded     int `json:"fields_added"`
	FieldsRemoved   int `json:"fields_removed"`
	Errors          int `json:"errors"`
}

// SystemMetrics is a lightweight snapshot of runtime counters, exposed
// alongside the Prometheus endpoint for quick health inspection.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// ExportResult points at a generated roster export.
type ExportResult struct {
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	SizeBytes int       `json:"size_bytes"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
