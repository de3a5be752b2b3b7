package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ops-api/internal/models"
	"github.com/noah-isme/course-ops-api/internal/service"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/response"
)

// ClassHandler exposes class-session and attendance endpoints.
type ClassHandler struct {
	attendance *service.AttendanceService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.AttendanceService) *ClassHandler {
	return &ClassHandler{attendance: svc}
}

// List godoc
// @Summary List class sessions
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	sessions, err := h.attendance.ListClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Create godoc
// @Summary Create a class session
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class session"
// @Success 201 {object} response.Envelope
// @Router /admin/classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	session, err := h.attendance.CreateClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Delete godoc
// @Summary Delete a class session and its attendance entries
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /admin/classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.attendance.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAttendance godoc
// @Summary Mark attendance for a class session
// @Description Applies the present-list to every student. Returns 429 when a
// concurrent submission for the same class is in flight and 500 when the
// student list is empty or writes fail.
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.MarkAttendanceRequest true "Present emails"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /admin/classes/{id}/attendance [post]
func (h *ClassHandler) MarkAttendance(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	result, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Status {
	case models.AttendanceDuplicateRequest:
		response.JSON(c, http.StatusTooManyRequests, result, nil)
	case models.AttendanceFailed:
		response.JSON(c, http.StatusInternalServerError, result, nil)
	default:
		response.JSON(c, http.StatusOK, result, nil)
	}
}
