package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	ListGroupsByCourse(ctx context.Context, courseID string) ([]models.RequisiteGroup, error)
}

type graphInvalidator interface {
	InvalidateGraph(ctx context.Context) error
}

// CreateCourseRequest is the payload for publishing a catalog course.
type CreateCourseRequest struct {
	Subject       string  `json:"subject" validate:"required,alpha,max=8"`
	CatalogNumber string  `json:"catalog_number" validate:"required,max=8"`
	Title         string  `json:"title" validate:"required,max=200"`
	Credits       float64 `json:"credits" validate:"gte=0,lte=12"`
	OfferedFall   bool    `json:"offered_fall"`
	OfferedSpring bool    `json:"offered_spring"`
	OfferedSummer bool    `json:"offered_summer"`
	RequisiteText string  `json:"requisite_text" validate:"max=500"`
}

// CourseDetail is a course with its declared requisite groups.
type CourseDetail struct {
	models.Course
	RequisiteGroups []models.RequisiteGroup `json:"requisite_groups,omitempty"`
}

// CatalogService serves catalog reads and course publication. Writes
// invalidate the cached graph and rebuild the active snapshot so audits
// never run against a stale catalog.
type CatalogService struct {
	courses   courseStore
	graphs    *CatalogGraphService
	cache     graphInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(courses courseStore, graphs *CatalogGraphService, cache graphInvalidator, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, graphs: graphs, cache: cache, validator: validate, logger: logger}
}

// List returns a filtered page of the catalog.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}
	return courses, pagination, nil
}

// Get returns one course with its requisite groups.
func (s *CatalogService) Get(ctx context.Context, id string) (*CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	groups, err := s.courses.ListGroupsByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisite groups")
	}
	return &CourseDetail{Course: *course, RequisiteGroups: groups}, nil
}

// Unlocks returns the derived unlock counters for one course from the
// active graph snapshot.
func (s *CatalogService) Unlocks(ctx context.Context, id string) (*models.CourseUnlocks, error) {
	graph, err := s.graphs.Current()
	if err != nil {
		return nil, err
	}
	if _, ok := graph.Courses[id]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	unlocks := graph.Unlocks(id)
	return &unlocks, nil
}

// Create publishes a new course and refreshes the graph snapshot.
func (s *CatalogService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Subject:       req.Subject,
		CatalogNumber: req.CatalogNumber,
		Title:         req.Title,
		Credits:       req.Credits,
		OfferedFall:   req.OfferedFall,
		OfferedSpring: req.OfferedSpring,
		OfferedSummer: req.OfferedSummer,
		RequisiteText: req.RequisiteText,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateGraph(ctx); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate cached graph", "error", err)
		}
	}
	if _, err := s.graphs.Rebuild(ctx); err != nil {
		// The course is persisted; a failed rebuild leaves the previous
		// snapshot active and surfaces on the rebuild endpoint.
		s.logger.Sugar().Errorw("graph rebuild after course create failed", "course", course.Code(), "error", err)
	}
	return course, nil
}
