package models

import "time"

// ClassSession is one scheduled class meeting. Deleting a session cascades
// removal of its id from every AdminStudent attendance map.
type ClassSession struct {
	ID          string    `db:"id" json:"id"`
	Date        string    `db:"date" json:"date"`
	Topic       string    `db:"topic" json:"topic"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AttendanceStatus enumerates the attendance marker outcomes.
type AttendanceStatus string

const (
	AttendanceCompleted        AttendanceStatus = "completed"
	AttendanceNoChanges        AttendanceStatus = "no_changes"
	AttendanceDuplicateRequest AttendanceStatus = "duplicate_request"
	AttendanceFailed           AttendanceStatus = "failed"
)

// AttendanceResult is the outcome of one mark-attendance invocation.
type AttendanceResult struct {
	Status  AttendanceStatus `json:"status"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Message string           `json:"message,omitempty"`
}
