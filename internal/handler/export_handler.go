package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ops-api/internal/service"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
	"github.com/noah-isme/course-ops-api/pkg/response"
)

// ExportHandler serves generated export files behind signed tokens.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: svc}
}

// Download godoc
// @Summary Download a generated export
// @Description The token is issued by the export endpoint and expires with
// the configured TTL. No authentication header is required.
// @Tags Operations
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	relPath, err := h.exports.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close()

	filename := filepath.Base(relPath)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
