package models

import "time"

// AdminStudent is the persisted admin-maintained record for one student,
// keyed by normalized email. Fields holds the flat scalar overrides (name,
// payment status/comment/screenshot, resume link, teacher evaluation and the
// like); attendance and grades carry their own structures.
type AdminStudent struct {
	Email      string        `db:"email" json:"email"`
	Fields     StringMap     `db:"fields" json:"fields"`
	Attendance AttendanceMap `db:"attendance" json:"attendance"`
	Grades     GradeTree     `db:"grades" json:"grades"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentRecord is one reconciled student view: merged Register, Survey and
// admin fields, flattened for API consumers. Always carries a canonical
// lowercase email and resolved name.
type StudentRecord map[string]interface{}

// GradeUpdate pairs one student with their rebuilt grade structure.
type GradeUpdate struct {
	Email  string
	Grades GradeTree
}

// BatchResult reports the outcome of a multi-record write where items are
// attempted independently.
type BatchResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
