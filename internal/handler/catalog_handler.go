package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/degree-audit-api/internal/dto"
	"github.com/noah-isme/degree-audit-api/internal/models"
	"github.com/noah-isme/degree-audit-api/internal/service"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
	"github.com/noah-isme/degree-audit-api/pkg/response"
)

// CatalogHandler exposes catalog and graph endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
	graphs  *service.CatalogGraphService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, graphs *service.CatalogGraphService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, graphs: graphs}
}

// List godoc
// @Summary List catalog courses
// @Tags Catalog
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param search query string false "Search title or number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Subject = c.Query("subject")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	courses, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Fetch one course with its requisite groups
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	detail, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Unlocks godoc
// @Summary Derived unlock counters for one course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/unlocks [get]
func (h *CatalogHandler) Unlocks(c *gin.Context) {
	unlocks, err := h.catalog.Unlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unlocks, nil)
}

// Create godoc
// @Summary Publish a catalog course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CatalogHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.catalog.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// RebuildGraph godoc
// @Summary Rebuild the catalog graph snapshot
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/graph/rebuild [post]
func (h *CatalogHandler) RebuildGraph(c *gin.Context) {
	graph, err := h.graphs.Rebuild(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GraphStatusResponse{
		BuiltAt:  graph.BuiltAt,
		Courses:  len(graph.Courses),
		Warnings: len(graph.Warnings),
	}, nil)
}

// GraphStatus godoc
// @Summary Current catalog graph snapshot status
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/graph [get]
func (h *CatalogHandler) GraphStatus(c *gin.Context) {
	graph, err := h.graphs.Current()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.GraphStatusResponse{
		BuiltAt:  graph.BuiltAt,
		Courses:  len(graph.Courses),
		Warnings: len(graph.Warnings),
	}, nil)
}
