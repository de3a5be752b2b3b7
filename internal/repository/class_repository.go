package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

// ClassRepository manages persistence for class sessions.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns all class sessions, most recent date first.
func (r *ClassRepository) List(ctx context.Context) ([]models.ClassSession, error) {
	const query = `SELECT id, date, topic, description, created_at
        FROM class_sessions ORDER BY date DESC, created_at DESC`
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// Get fetches one class session by id.
func (r *ClassRepository) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	const query = `SELECT id, date, topic, description, created_at FROM class_sessions WHERE id = $1`
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get class session %s: %w", id, err)
	}
	return &session, nil
}

// Create inserts a new class session.
func (r *ClassRepository) Create(ctx context.Context, session *models.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_sessions (id, date, topic, description, created_at)
        VALUES (:id, :date, :topic, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// Delete removes a class session. Attendance-key cleanup is the caller's job.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM class_sessions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete class session %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}
