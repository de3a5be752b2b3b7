package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
)

func newCourseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryGetMissingDocument(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT id, doc, version").
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "version", "updated_at"}))

	content, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, content.Version)
	assert.NotNil(t, content.Doc)
}

func TestCourseRepositorySaveBumpsVersion(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "doc", "version", "updated_at"}).
		AddRow("main", []byte(`{"courses":[]}`), 4, time.Now())
	mock.ExpectQuery("INSERT INTO course_data").
		WithArgs("main", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	content, err := repo.Save(context.Background(), models.JSONDoc{"courses": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, 4, content.Version)
}
