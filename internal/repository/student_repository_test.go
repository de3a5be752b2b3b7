package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"email", "fields", "attendance", "grades", "created_at", "updated_at"}).
		AddRow("a@x.com", []byte(`{"Name":"Alice"}`), []byte(`{"class-1":true}`), []byte(`{}`), time.Now(), time.Now()).
		AddRow("b@x.com", []byte(`{}`), []byte(`{}`), []byte(`{"c1":{"m1":{"lab1":"A"}}}`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT email, fields, attendance, grades").WillReturnRows(rows)

	students, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Alice", students[0].Fields["Name"])
	assert.True(t, students[0].Attendance["class-1"])
	assert.Equal(t, "A", students[1].Grades["c1"]["m1"]["lab1"])
}

func TestStudentRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT email, fields, attendance, grades").
		WithArgs("missing@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "fields", "attendance", "grades", "created_at", "updated_at"}))

	_, err := repo.Get(context.Background(), "missing@x.com")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO admin_students").
		WithArgs("a@x.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.AdminStudent{
		Email:      "a@x.com",
		Fields:     models.StringMap{"Name": "Alice"},
		Attendance: models.AttendanceMap{},
		Grades:     models.GradeTree{},
	}
	require.NoError(t, repo.Upsert(context.Background(), student))
	assert.False(t, student.UpdatedAt.IsZero())
}

func TestStudentRepositoryMergeFieldsMissingRecord(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE admin_students").
		WithArgs("ghost@x.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MergeFields(context.Background(), "ghost@x.com", models.StringMap{"Name": "Ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentRepositoryRemoveAttendanceKey(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE admin_students").
		WithArgs("class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	touched, err := repo.RemoveAttendanceKey(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 3, touched)
}

func TestStudentRepositoryRemoveAttendanceKeyRowsAffectedError(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE admin_students").
		WithArgs("class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))

	_, err := repo.RemoveAttendanceKey(context.Background(), "class-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected unsupported")
}

func TestStudentRepositoryBatchUpdateGrades(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE admin_students SET grades").
		WithArgs("a@x.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE admin_students SET grades").
		WithArgs("b@x.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updates := []models.GradeUpdate{
		{Email: "a@x.com", Grades: models.GradeTree{"c1": {"m1": {"lab1": "A"}}}},
		{Email: "b@x.com", Grades: models.GradeTree{}},
	}
	require.NoError(t, repo.BatchUpdateGrades(context.Background(), updates))
	require.NoError(t, mock.ExpectationsWereMet())
}
