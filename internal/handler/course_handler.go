package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ops-api/internal/middleware"
	"github.com/noah-isme/course-ops-api/internal/models"
	"github.com/noah-isme/course-ops-api/internal/service"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/response"
)

// CourseHandler exposes the course content document.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: svc}
}

// Get godoc
// @Summary Get the course content document
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/course [get]
func (h *CourseHandler) Get(c *gin.Context) {
	content, cached, err := h.courses.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, content, nil)
}

// Update godoc
// @Summary Replace the course content document
// @Description Saving a new document invalidates roster caches and schedules
// a grade-structure sync.
// @Tags Course
// @Accept json
// @Produce json
// @Param payload body object true "Course document"
// @Success 200 {object} response.Envelope
// @Router /admin/course [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var doc models.JSONDoc
	if err := c.ShouldBindJSON(&doc); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course document"))
		return
	}

	content, err := h.courses.Save(c.Request.Context(), doc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Structure godoc
// @Summary Get the extracted course structure
// @Tags Course
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/course/structure [get]
func (h *CourseHandler) Structure(c *gin.Context) {
	structure, err := h.courses.Structure(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}
