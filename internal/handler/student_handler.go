package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ops-api/internal/middleware"
	"github.com/noah-isme/course-ops-api/internal/service"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/response"
)

// StudentHandler exposes the reconciled student roster.
type StudentHandler struct {
	students   *service.StudentService
	roster     *service.RosterService
	operations *service.OperationsService
	migration  *service.MigrationService
	exports    *service.ExportService
}

// StudentHandlerParams groups constructor dependencies.
type StudentHandlerParams struct {
	Students   *service.StudentService
	Roster     *service.RosterService
	Operations *service.OperationsService
	Migration  *service.MigrationService
	Exports    *service.ExportService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(params StudentHandlerParams) *StudentHandler {
	return &StudentHandler{
		students:   params.Students,
		roster:     params.Roster,
		operations: params.Operations,
		migration:  params.Migration,
		exports:    params.Exports,
	}
}

// List godoc
// @Summary List reconciled students
// @Tags Students
// @Produce json
// @Param sort_by query string false "Sort field: name, email, payment_status, timestamp"
// @Param sort_order query string false "asc or desc"
// @Param refresh query bool false "Bypass the source cache"
// @Success 200 {object} response.Envelope
// @Router /admin/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	opts := service.ListOptions{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Refresh:   c.Query("refresh") == "true",
	}

	records, cached, err := h.students.List(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, records, nil)
}

// Register godoc
// @Summary List raw registration rows
// @Tags Students
// @Produce json
// @Param refresh query bool false "Bypass the source cache"
// @Success 200 {object} response.Envelope
// @Router /admin/students/register [get]
func (h *StudentHandler) Register(c *gin.Context) {
	table, err := h.roster.Register(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}

// Survey godoc
// @Summary List raw survey rows
// @Tags Students
// @Produce json
// @Param refresh query bool false "Bypass the source cache"
// @Success 200 {object} response.Envelope
// @Router /admin/students/survey [get]
func (h *StudentHandler) Survey(c *gin.Context) {
	table, err := h.roster.Survey(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}

// Emails godoc
// @Summary List valid student emails
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/students/emails [get]
func (h *StudentHandler) Emails(c *gin.Context) {
	emails, err := h.students.Emails(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, emails, nil)
}

// Metrics godoc
// @Summary Roster aggregate metrics
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/students/operations/metrics [get]
func (h *StudentHandler) Metrics(c *gin.Context) {
	metrics, err := h.operations.Metrics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// Status godoc
// @Summary Students missing payment, resume, attendance or grades
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/students/operations/status [get]
func (h *StudentHandler) Status(c *gin.Context) {
	status, err := h.operations.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Sync godoc
// @Summary Trigger a grade-structure sync
// @Tags Operations
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /admin/students/sync [post]
func (h *StudentHandler) Sync(c *gin.Context) {
	h.migration.TriggerSync("manual")
	response.JSON(c, http.StatusAccepted, gin.H{"message": "sync scheduled"}, nil)
}

// SyncStatus godoc
// @Summary Last grade-structure sync outcome
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/students/sync-status [get]
func (h *StudentHandler) SyncStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.migration.Status(), nil)
}

// Export godoc
// @Summary Export the reconciled roster
// @Tags Operations
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export format"
// @Success 200 {object} response.Envelope
// @Router /admin/students/export [post]
func (h *StudentHandler) Export(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.exports.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkUpdate godoc
// @Summary Apply up to 100 independent student updates
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.BulkUpdateRequest true "Bulk updates"
// @Success 200 {object} response.Envelope
// @Router /admin/students/operations/bulk [post]
func (h *StudentHandler) BulkUpdate(c *gin.Context) {
	var req service.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	result, err := h.students.BulkUpdate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get one reconciled student
// @Tags Students
// @Produce json
// @Param email path string true "Student email"
// @Success 200 {object} response.Envelope
// @Router /admin/students/{email} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	record, err := h.students.Get(c.Request.Context(), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Update godoc
// @Summary Update one student
// @Tags Students
// @Accept json
// @Produce json
// @Param email path string true "Student email"
// @Param payload body object true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /admin/students/{email} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	email := strings.TrimSpace(c.Param("email"))
	if err := h.students.Update(c.Request.Context(), email, payload); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "student updated"}, nil)
}
