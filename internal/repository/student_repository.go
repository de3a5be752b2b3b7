package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

// StudentRepository persists admin-maintained student records keyed by
// normalized email.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListAll returns every admin student record ordered by email.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.AdminStudent, error) {
	const query = `SELECT email, fields, attendance, grades, created_at, updated_at
        FROM admin_students ORDER BY email ASC`
	var students []models.AdminStudent
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list admin students: %w", err)
	}
	return students, nil
}

// Get fetches one record by normalized email.
func (r *StudentRepository) Get(ctx context.Context, email string) (*models.AdminStudent, error) {
	const query = `SELECT email, fields, attendance, grades, created_at, updated_at
        FROM admin_students WHERE email = $1`
	var student models.AdminStudent
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get admin student %s: %w", email, err)
	}
	return &student, nil
}

// Upsert inserts or fully replaces a record.
func (r *StudentRepository) Upsert(ctx context.Context, student *models.AdminStudent) error {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO admin_students (email, fields, attendance, grades, created_at, updated_at)
        VALUES (:email, :fields, :attendance, :grades, :created_at, :updated_at)
        ON CONFLICT (email)
        DO UPDATE SET fields = EXCLUDED.fields, attendance = EXCLUDED.attendance,
                      grades = EXCLUDED.grades, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("upsert admin student %s: %w", student.Email, err)
	}
	return nil
}

// MergeFields shallow-merges the provided flat fields into the stored record.
// Keys absent from fields are left untouched.
func (r *StudentRepository) MergeFields(ctx context.Context, email string, fields models.StringMap) error {
	const query = `UPDATE admin_students
        SET fields = fields || $2, updated_at = $3 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, fields, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("merge fields for %s: %w", email, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// SetAttendance writes one attendance flag for one student.
func (r *StudentRepository) SetAttendance(ctx context.Context, email, classID string, present bool) error {
	const query = `UPDATE admin_students
        SET attendance = jsonb_set(attendance, ARRAY[$2], to_jsonb($3::boolean), true),
            updated_at = $4
        WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, classID, present, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set attendance for %s: %w", email, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// RemoveAttendanceKey deletes a class-session key from every attendance map.
// Returns the number of records touched.
func (r *StudentRepository) RemoveAttendanceKey(ctx context.Context, classID string) (int, error) {
	const query = `UPDATE admin_students
        SET attendance = attendance - $1, updated_at = $2
        WHERE attendance ? $1`
	res, err := r.db.ExecContext(ctx, query, classID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("remove attendance key %s: %w", classID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove attendance key %s: %w", classID, err)
	}
	return int(affected), nil
}

// BatchUpdateGrades writes the rebuilt grade structures in one transaction.
// Callers chunk updates to respect the store's batch limit; a failed batch
// rolls back as a unit.
func (r *StudentRepository) BatchUpdateGrades(ctx context.Context, updates []models.GradeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade batch tx: %w", err)
	}
	const query = `UPDATE admin_students SET grades = $2, updated_at = $3 WHERE email = $1`
	now := time.Now().UTC()
	for _, update := range updates {
		if _, err := tx.ExecContext(ctx, query, update.Email, update.Grades, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch update grades for %s: %w", update.Email, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade batch tx: %w", err)
	}
	return nil
}
