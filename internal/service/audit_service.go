package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
	"github.com/noah-isme/degree-audit-api/pkg/jobs"
)

type graphProvider interface {
	Current() (*models.CatalogGraph, error)
}

type studentReader interface {
	ListCompletions(ctx context.Context, studentID string) ([]models.Completion, error)
	ListWaivers(ctx context.Context, studentID string) ([]models.Waiver, error)
	GetPreferences(ctx context.Context, studentID string) (*models.Preferences, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
}

type programReader interface {
	ListDeclared(ctx context.Context, studentID string) ([]models.Program, error)
}

type resultCache interface {
	GetLatestRun(ctx context.Context, studentID string) (*models.AuditRun, error)
	SetLatestRun(ctx context.Context, run *models.AuditRun) error
}

type auditStore interface {
	InsertRun(ctx context.Context, run *models.AuditRun) error
	ReplaceRecommendations(ctx context.Context, runID string, recs []models.Recommendation) error
	GetRun(ctx context.Context, runID string) (*models.AuditRun, error)
	LatestRun(ctx context.Context, studentID string) (*models.AuditRun, error)
	ListRuns(ctx context.Context, studentID string, page, pageSize int) ([]models.AuditRun, int, error)
	ListRecommendations(ctx context.Context, runID string) ([]models.Recommendation, error)
}

// RunAuditRequest is the single entry point payload for one audit.
type RunAuditRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	PlanID       string `json:"plan_id"`
	TargetSeason string `json:"target_season" validate:"omitempty,oneof=fall spring summer"`
}

// AuditOutcome bundles the persisted run with its recommendation list.
type AuditOutcome struct {
	Run             *models.AuditRun        `json:"run"`
	Recommendations []models.Recommendation `json:"recommendations,omitempty"`
}

// AuditService composes the evaluators into one audit run. It is the
// only component external collaborators call directly.
type AuditService struct {
	graphs       graphProvider
	students     studentReader
	programs     programReader
	audits       auditStore
	requisites   *RequisiteService
	requirements *RequirementService
	recommender  *RecommendationService
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
	queue        *jobs.Queue
	results      resultCache
}

// NewAuditService constructs the orchestrator. The recommender is
// constructed by the caller so configuration errors surface before any
// audit is accepted.
func NewAuditService(graphs graphProvider, students studentReader, programs programReader, audits auditStore,
	requisites *RequisiteService, requirements *RequirementService, recommender *RecommendationService,
	validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AuditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		graphs:       graphs,
		students:     students,
		programs:     programs,
		audits:       audits,
		requisites:   requisites,
		requirements: requirements,
		recommender:  recommender,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
	}
}

// AttachQueue wires the background worker pool for async runs.
func (s *AuditService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// AttachResultCache wires the best-effort latest-run cache.
func (s *AuditService) AttachResultCache(results resultCache) {
	s.results = results
}

// Run executes one audit for one student and optional plan, persists the
// outcome as an immutable record and returns it. Integrity errors inside
// rule data abort the run; the aborted run is itself recorded with its
// reason and carries no recommendations.
func (s *AuditService) Run(ctx context.Context, req RunAuditRequest) (*AuditOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit request")
	}
	start := time.Now()

	graph, err := s.graphs.Current()
	if err != nil {
		return nil, err
	}

	// Load every input snapshot up front; evaluation below is CPU-only.
	completions, err := s.students.ListCompletions(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completions")
	}
	waivers, err := s.students.ListWaivers(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waivers")
	}
	prefs, err := s.loadPreferences(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	programs, err := s.programs.ListDeclared(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load declared programs")
	}
	plan, err := s.loadPlan(ctx, req.StudentID, req.PlanID)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		// Cancelled mid-run: discard quietly, nothing was persisted.
		return nil, err
	}

	st := NewStudentState(graph, completions, waivers)
	concurrent, pinned, pinnedLoad := planState(graph, plan)
	season := targetSeason(req.TargetSeason, plan)

	run := &models.AuditRun{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		CreatedAt: time.Now().UTC(),
	}
	if req.PlanID != "" {
		run.PlanID = &req.PlanID
	}

	summary := models.AuditSummary{}
	for _, warning := range graph.Warnings {
		summary.Warnings = append(summary.Warnings, warning.Message)
	}

	// Eligibility over the full catalog, in deterministic code order.
	courses := sortedCourses(graph)
	for _, course := range courses {
		result := s.requisites.Evaluate(graph, course, st, concurrent)
		summary.Warnings = append(summary.Warnings, result.Warnings...)
		summary.Eligibility = append(summary.Eligibility, models.CourseEligibility{
			CourseID:     result.CourseID,
			Code:         result.Code,
			Status:       result.Status,
			UnmetMembers: result.UnmetMembers,
		})
	}

	for _, program := range programs {
		programResult, evalErr := s.requirements.EvaluateProgram(graph, program, st)
		if evalErr != nil {
			return s.abort(ctx, run, summary, evalErr, start)
		}
		summary.Programs = append(summary.Programs, programResult)
	}

	recommendations := s.recommender.Recommend(ScoreInput{
		Graph:        graph,
		Eligibility:  summary.Eligibility,
		Programs:     summary.Programs,
		Student:      st,
		Pinned:       pinned,
		PinnedLoad:   pinnedLoad,
		TargetSeason: season,
		Preferences:  prefs,
	})

	run.Summary = summary
	run.Status = models.AuditComplete
	if len(summary.Warnings) > 0 {
		run.Status = models.AuditCompleteWithWarnings
	}

	if err := s.persist(ctx, run, recommendations); err != nil {
		return nil, err
	}
	s.metrics.ObserveAuditRun(string(run.Status), time.Since(start))
	s.logger.Sugar().Infow("audit run complete",
		"run_id", run.ID,
		"student_id", run.StudentID,
		"status", run.Status,
		"programs", len(summary.Programs),
		"recommendations", len(recommendations))

	return &AuditOutcome{Run: run, Recommendations: recommendations}, nil
}

// Enqueue schedules an asynchronous run and returns the job identifier.
func (s *AuditService) Enqueue(req RunAuditRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit request")
	}
	if s.queue == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "audit queue not running")
	}
	jobID := uuid.NewString()
	err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: "audit.run", Payload: req})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue audit")
	}
	return jobID, nil
}

// HandleJob is the queue handler for async runs.
func (s *AuditService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(RunAuditRequest)
	if !ok {
		s.logger.Sugar().Errorw("unexpected audit job payload", "job_id", job.ID)
		return nil
	}
	_, err := s.Run(ctx, req)
	if err != nil && ctx.Err() != nil {
		// Shutdown or cancellation: drop the result without retries.
		return nil
	}
	return err
}

// GetRun returns one persisted run.
func (s *AuditService) GetRun(ctx context.Context, runID string) (*models.AuditRun, error) {
	run, err := s.audits.GetRun(ctx, runID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "audit run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit run")
	}
	return run, nil
}

// LatestRun returns a student's most recent run, served from the result
// cache when possible.
func (s *AuditService) LatestRun(ctx context.Context, studentID string) (*models.AuditRun, error) {
	if s.results != nil {
		if cached, err := s.results.GetLatestRun(ctx, studentID); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}
	run, err := s.audits.LatestRun(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no audit runs for student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest audit run")
	}
	s.cacheLatest(ctx, run)
	return run, nil
}

// History returns a student's run log, newest first.
func (s *AuditService) History(ctx context.Context, studentID string, page, pageSize int) ([]models.AuditRun, *models.Pagination, error) {
	runs, total, err := s.audits.ListRuns(ctx, studentID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit runs")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	return runs, pagination, nil
}

// Recommendations returns the ranked list persisted with a run.
func (s *AuditService) Recommendations(ctx context.Context, runID string) ([]models.Recommendation, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	recs, err := s.audits.ListRecommendations(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recommendations")
	}
	return recs, nil
}

// abort records the failed run with its reason; no recommendations are
// ever attached to an aborted run.
func (s *AuditService) abort(ctx context.Context, run *models.AuditRun, summary models.AuditSummary, cause error, start time.Time) (*AuditOutcome, error) {
	appErr := appErrors.FromError(cause)
	run.Status = models.AuditAborted
	run.AbortReason = appErr.Message
	run.Summary = models.AuditSummary{Warnings: summary.Warnings}

	if err := s.audits.InsertRun(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record aborted audit")
	}
	s.cacheLatest(ctx, run)
	s.metrics.ObserveAuditRun(string(models.AuditAborted), time.Since(start))
	s.logger.Sugar().Warnw("audit run aborted",
		"run_id", run.ID,
		"student_id", run.StudentID,
		"reason", run.AbortReason)
	return &AuditOutcome{Run: run}, nil
}

func (s *AuditService) persist(ctx context.Context, run *models.AuditRun, recommendations []models.Recommendation) error {
	if err := s.audits.InsertRun(ctx, run); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist audit run")
	}
	for i := range recommendations {
		recommendations[i].ID = uuid.NewString()
		recommendations[i].AuditRunID = run.ID
	}
	if err := s.audits.ReplaceRecommendations(ctx, run.ID, recommendations); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist recommendations")
	}
	s.cacheLatest(ctx, run)
	return nil
}

// cacheLatest refreshes the latest-run cache entry; failures only warn.
func (s *AuditService) cacheLatest(ctx context.Context, run *models.AuditRun) {
	if s.results == nil {
		return
	}
	if err := s.results.SetLatestRun(ctx, run); err != nil {
		s.logger.Sugar().Warnw("failed to cache latest audit run",
			"run_id", run.ID,
			"student_id", run.StudentID,
			"error", err)
	}
}

func (s *AuditService) loadPreferences(ctx context.Context, studentID string) (models.Preferences, error) {
	prefs, err := s.students.GetPreferences(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Preferences{StudentID: studentID}, nil
		}
		return models.Preferences{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return *prefs, nil
}

func (s *AuditService) loadPlan(ctx context.Context, studentID, planID string) (*models.Plan, error) {
	if planID == "" {
		return nil, nil
	}
	plan, err := s.students.GetPlan(ctx, planID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "plan belongs to a different student")
	}
	return plan, nil
}

// planState derives the current-term concurrent set, the pinned course
// set and the pinned credit load from the plan's first term.
func planState(graph *models.CatalogGraph, plan *models.Plan) (concurrent map[string]bool, pinned map[string]bool, load float64) {
	concurrent = make(map[string]bool)
	pinned = make(map[string]bool)
	if plan == nil || len(plan.Terms) == 0 {
		return concurrent, pinned, 0
	}
	current := plan.Terms[0]
	for _, term := range plan.Terms[1:] {
		if term.Position < current.Position {
			current = term
		}
	}
	for _, item := range current.Items {
		if item.Backup {
			continue
		}
		concurrent[item.CourseID] = true
		pinned[item.CourseID] = true
		if course, ok := graph.Courses[item.CourseID]; ok {
			load += course.Credits
		}
	}
	return concurrent, pinned, load
}

func targetSeason(requested string, plan *models.Plan) models.TermSeason {
	if requested != "" {
		return models.TermSeason(requested)
	}
	if plan != nil && len(plan.Terms) > 0 {
		current := plan.Terms[0]
		for _, term := range plan.Terms[1:] {
			if term.Position < current.Position {
				current = term
			}
		}
		return current.Season
	}
	return ""
}

func sortedCourses(graph *models.CatalogGraph) []models.Course {
	courses := make([]models.Course, 0, len(graph.Courses))
	for _, course := range graph.Courses {
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code() < courses[j].Code() })
	return courses
}
