package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-ops-api/internal/models"
)

// courseDocID identifies the single course content document.
const courseDocID = "main"

// CourseRepository persists the course content document.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Get returns the current course content; a missing document yields an empty
// version-zero content rather than an error.
func (r *CourseRepository) Get(ctx context.Context) (*models.CourseContent, error) {
	const query = `SELECT id, doc, version, updated_at FROM course_data WHERE id = $1`
	var content models.CourseContent
	if err := r.db.GetContext(ctx, &content, query, courseDocID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CourseContent{ID: courseDocID, Doc: models.JSONDoc{}}, nil
		}
		return nil, fmt.Errorf("get course content: %w", err)
	}
	return &content, nil
}

// Save replaces the course document and bumps its version.
func (r *CourseRepository) Save(ctx context.Context, doc models.JSONDoc) (*models.CourseContent, error) {
	const query = `INSERT INTO course_data (id, doc, version, updated_at)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (id)
        DO UPDATE SET doc = EXCLUDED.doc, version = course_data.version + 1, updated_at = EXCLUDED.updated_at
        RETURNING id, doc, version, updated_at`
	var content models.CourseContent
	if err := r.db.GetContext(ctx, &content, query, courseDocID, doc, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("save course content: %w", err)
	}
	return &content, nil
}
