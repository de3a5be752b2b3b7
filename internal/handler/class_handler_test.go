package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ops-api/internal/models"
	"github.com/noah-isme/course-ops-api/internal/service"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

type classRepoMock struct {
	sessions []models.ClassSession
}

func (m *classRepoMock) List(ctx context.Context) ([]models.ClassSession, error) {
	return m.sessions, nil
}

func (m *classRepoMock) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return &m.sessions[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *classRepoMock) Create(ctx context.Context, session *models.ClassSession) error {
	session.ID = "new-class"
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *classRepoMock) Delete(ctx context.Context, id string) error {
	return nil
}

type attendanceRepoMock struct {
	students []models.AdminStudent
	entered  chan struct{}
	block    chan struct{}
}

func (m *attendanceRepoMock) ListAll(ctx context.Context) ([]models.AdminStudent, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	return m.students, nil
}

func (m *attendanceRepoMock) SetAttendance(ctx context.Context, email, classID string, present bool) error {
	return nil
}

func (m *attendanceRepoMock) RemoveAttendanceKey(ctx context.Context, classID string) (int, error) {
	return 0, nil
}

func newClassHandlerForTest(students *attendanceRepoMock) *ClassHandler {
	svc := service.NewAttendanceService(service.AttendanceServiceParams{
		Classes:  &classRepoMock{sessions: []models.ClassSession{{ID: "c1", Date: "2026-03-01", Topic: "Intro"}}},
		Students: students,
		Cache:    service.NewCacheService(nil, nil, time.Minute, zap.NewNop(), false),
	})
	return NewClassHandler(svc)
}

func markAttendance(t *testing.T, handler *ClassHandler, classID string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/admin/classes/"+classID+"/attendance", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: classID}}
	handler.MarkAttendance(c)
	return w
}

func TestClassHandlerMarkAttendanceOK(t *testing.T) {
	handler := newClassHandlerForTest(&attendanceRepoMock{students: []models.AdminStudent{
		{Email: "a@example.com", Attendance: models.AttendanceMap{}},
	}})

	w := markAttendance(t, handler, "c1", service.MarkAttendanceRequest{PresentEmails: []string{"a@example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.AttendanceCompleted))
}

func TestClassHandlerMarkAttendanceEmptyRosterFails(t *testing.T) {
	handler := newClassHandlerForTest(&attendanceRepoMock{})

	w := markAttendance(t, handler, "c1", service.MarkAttendanceRequest{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(models.AttendanceFailed))
}

func TestClassHandlerMarkAttendanceUnknownClass(t *testing.T) {
	handler := newClassHandlerForTest(&attendanceRepoMock{students: []models.AdminStudent{
		{Email: "a@example.com"},
	}})

	w := markAttendance(t, handler, "missing", service.MarkAttendanceRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassHandlerMarkAttendanceDuplicate(t *testing.T) {
	students := &attendanceRepoMock{
		students: []models.AdminStudent{{Email: "a@example.com", Attendance: models.AttendanceMap{}}},
		entered:  make(chan struct{}, 1),
		block:    make(chan struct{}),
	}
	handler := newClassHandlerForTest(students)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- markAttendance(t, handler, "c1", service.MarkAttendanceRequest{PresentEmails: []string{"a@example.com"}})
	}()

	// wait until the first request holds the class lock
	<-students.entered

	dup := markAttendance(t, handler, "c1", service.MarkAttendanceRequest{})
	assert.Equal(t, http.StatusTooManyRequests, dup.Code)
	assert.Contains(t, dup.Body.String(), string(models.AttendanceDuplicateRequest))

	close(students.block)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestClassHandlerCreateValidation(t *testing.T) {
	handler := newClassHandlerForTest(&attendanceRepoMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/admin/classes", bytes.NewReader([]byte(`{"topic":"no date"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
