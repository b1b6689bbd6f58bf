package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
	"github.com/noah-isme/degree-audit-api/internal/service"
	"github.com/noah-isme/degree-audit-api/pkg/config"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

type graphProviderStub struct {
	graph *models.CatalogGraph
}

func (s *graphProviderStub) Current() (*models.CatalogGraph, error) {
	if s.graph == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "catalog graph not built yet")
	}
	return s.graph, nil
}

type studentReaderStub struct{}

func (s *studentReaderStub) ListCompletions(ctx context.Context, studentID string) ([]models.Completion, error) {
	return nil, nil
}

func (s *studentReaderStub) ListWaivers(ctx context.Context, studentID string) ([]models.Waiver, error) {
	return nil, nil
}

func (s *studentReaderStub) GetPreferences(ctx context.Context, studentID string) (*models.Preferences, error) {
	return nil, sql.ErrNoRows
}

func (s *studentReaderStub) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	return nil, sql.ErrNoRows
}

type programReaderStub struct{}

func (s *programReaderStub) ListDeclared(ctx context.Context, studentID string) ([]models.Program, error) {
	return nil, nil
}

type auditStoreStub struct {
	runs map[string]*models.AuditRun
}

func (s *auditStoreStub) InsertRun(ctx context.Context, run *models.AuditRun) error {
	if s.runs == nil {
		s.runs = map[string]*models.AuditRun{}
	}
	s.runs[run.ID] = run
	return nil
}

func (s *auditStoreStub) ReplaceRecommendations(ctx context.Context, runID string, recs []models.Recommendation) error {
	return nil
}

func (s *auditStoreStub) GetRun(ctx context.Context, runID string) (*models.AuditRun, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (s *auditStoreStub) LatestRun(ctx context.Context, studentID string) (*models.AuditRun, error) {
	return nil, sql.ErrNoRows
}

func (s *auditStoreStub) ListRuns(ctx context.Context, studentID string, page, pageSize int) ([]models.AuditRun, int, error) {
	return nil, 0, nil
}

func (s *auditStoreStub) ListRecommendations(ctx context.Context, runID string) ([]models.Recommendation, error) {
	return nil, nil
}

func testScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		UnlockWeight:       0.4,
		GapReliefWeight:    0.35,
		AvailabilityWeight: 0.15,
		ConflictWeight:     0.1,
		DefaultMinCredits:  12,
		DefaultMaxCredits:  18,
		MaxRecommendations: 25,
	}
}

func newTestHandler(t *testing.T, graph *models.CatalogGraph, store *auditStoreStub) *AuditHandler {
	t.Helper()
	recommender, err := service.NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)
	audits := service.NewAuditService(
		&graphProviderStub{graph: graph}, &studentReaderStub{}, &programReaderStub{}, store,
		service.NewRequisiteService(nil), service.NewRequirementService(nil), recommender, nil, nil, nil)
	return NewAuditHandler(audits, nil)
}

func emptyGraph(t *testing.T) *models.CatalogGraph {
	t.Helper()
	g, err := service.BuildCatalogGraph(nil, nil)
	require.NoError(t, err)
	return g
}

func TestAuditHandlerRunInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestHandler(t, emptyGraph(t), &auditStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/audits", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandlerRunMissingStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestHandler(t, emptyGraph(t), &auditStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.RunAuditRequest{})
	req, _ := http.NewRequest(http.MethodPost, "/audits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandlerRunSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &auditStoreStub{}
	handler := newTestHandler(t, emptyGraph(t), store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.RunAuditRequest{StudentID: "stu-1"})
	req, _ := http.NewRequest(http.MethodPost, "/audits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.runs, 1)
}

func TestAuditHandlerRunWithoutGraph(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestHandler(t, nil, &auditStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.RunAuditRequest{StudentID: "stu-1"})
	req, _ := http.NewRequest(http.MethodPost, "/audits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Run(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestAuditHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestHandler(t, emptyGraph(t), &auditStoreStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/audits/run-missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "run-missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
