package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/degree-audit-api/internal/dto"
	"github.com/noah-isme/degree-audit-api/internal/service"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
	"github.com/noah-isme/degree-audit-api/pkg/response"
)

// AuditHandler exposes audit run endpoints.
type AuditHandler struct {
	audits  *service.AuditService
	exports *service.ExportService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits *service.AuditService, exports *service.ExportService) *AuditHandler {
	return &AuditHandler{audits: audits, exports: exports}
}

// Run godoc
// @Summary Run a degree audit
// @Tags Audits
// @Accept json
// @Produce json
// @Param async query bool false "Queue the run instead of waiting"
// @Param payload body service.RunAuditRequest true "Audit request"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /audits [post]
func (h *AuditHandler) Run(c *gin.Context) {
	var req service.RunAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if c.Query("async") == "true" {
		jobID, err := h.audits.Enqueue(req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, dto.QueuedAuditResponse{JobID: jobID, StudentID: req.StudentID, Status: "queued"})
		return
	}

	outcome, err := h.audits.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Get godoc
// @Summary Fetch one audit run
// @Tags Audits
// @Produce json
// @Param id path string true "Audit run ID"
// @Success 200 {object} response.Envelope
// @Router /audits/{id} [get]
func (h *AuditHandler) Get(c *gin.Context) {
	run, err := h.audits.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Latest godoc
// @Summary Fetch a student's most recent audit run
// @Tags Audits
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/audits/latest [get]
func (h *AuditHandler) Latest(c *gin.Context) {
	run, err := h.audits.LatestRun(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// History godoc
// @Summary List a student's audit runs
// @Tags Audits
// @Produce json
// @Param studentId path string true "Student ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/audits [get]
func (h *AuditHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, pagination, err := h.audits.History(c.Request.Context(), c.Param("studentId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Recommendations godoc
// @Summary List recommendations for an audit run
// @Tags Audits
// @Produce json
// @Param id path string true "Audit run ID"
// @Success 200 {object} response.Envelope
// @Router /audits/{id}/recommendations [get]
func (h *AuditHandler) Recommendations(c *gin.Context) {
	recs, err := h.audits.Recommendations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recs, nil)
}

// Export godoc
// @Summary Export an audit run as CSV or PDF
// @Tags Audits
// @Accept json
// @Produce json
// @Param id path string true "Audit run ID"
// @Param payload body dto.ExportRequest true "Export options"
// @Success 201 {object} response.Envelope
// @Router /audits/{id}/export [post]
func (h *AuditHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), service.ExportFormat(req.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ExportResponse{
		RunID:     result.RunID,
		Format:    result.Format,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Download godoc
// @Summary Download an exported report with a signed token
// @Tags Audits
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *AuditHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter required"))
		return
	}
	file, filename, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
