package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

// AuditRepository persists audit runs and their recommendation lists.
// Runs are append-only; the recommendation set for a run is written once
// inside the same transaction that could replace a retried write.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRunRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	PlanID      *string   `db:"plan_id"`
	Status      string    `db:"status"`
	AbortReason string    `db:"abort_reason"`
	Summary     []byte    `db:"summary"`
	CreatedAt   time.Time `db:"created_at"`
}

type recommendationRow struct {
	ID          string  `db:"id"`
	AuditRunID  string  `db:"audit_run_id"`
	CourseID    string  `db:"course_id"`
	Code        string  `db:"code"`
	Rank        int     `db:"rank"`
	Score       float64 `db:"score"`
	UnlockCount int     `db:"unlock_count"`
	GapRelief   float64 `db:"gap_relief"`
	Rationale   []byte  `db:"rationale"`
}

// InsertRun appends one audit run with its summary serialised as JSON.
func (r *AuditRepository) InsertRun(ctx context.Context, run *models.AuditRun) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal audit summary: %w", err)
	}
	row := auditRunRow{
		ID:          run.ID,
		StudentID:   run.StudentID,
		PlanID:      run.PlanID,
		Status:      string(run.Status),
		AbortReason: run.AbortReason,
		Summary:     summary,
		CreatedAt:   run.CreatedAt,
	}
	const query = `INSERT INTO audit_runs (id, student_id, plan_id, status, abort_reason, summary, created_at)
        VALUES (:id, :student_id, :plan_id, :status, :abort_reason, :summary, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert audit run: %w", err)
	}
	return nil
}

// ReplaceRecommendations writes the full recommendation list for a run.
func (r *AuditRepository) ReplaceRecommendations(ctx context.Context, runID string, recs []models.Recommendation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recommendations tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE audit_run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	const query = `INSERT INTO recommendations (id, audit_run_id, course_id, code, rank, score, unlock_count, gap_relief, rationale)
        VALUES (:id, :audit_run_id, :course_id, :code, :rank, :score, :unlock_count, :gap_relief, :rationale)`
	for _, rec := range recs {
		rationale, err := json.Marshal(rec.Rationale)
		if err != nil {
			return fmt.Errorf("marshal rationale: %w", err)
		}
		row := recommendationRow{
			ID:          rec.ID,
			AuditRunID:  runID,
			CourseID:    rec.CourseID,
			Code:        rec.Code,
			Rank:        rec.Rank,
			Score:       rec.Score,
			UnlockCount: rec.UnlockCount,
			GapRelief:   rec.GapRelief,
			Rationale:   rationale,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recommendations: %w", err)
	}
	return nil
}

// GetRun returns one audit run by ID.
func (r *AuditRepository) GetRun(ctx context.Context, runID string) (*models.AuditRun, error) {
	const query = `SELECT id, student_id, plan_id, status, abort_reason, summary, created_at FROM audit_runs WHERE id = $1`
	var row auditRunRow
	if err := r.db.GetContext(ctx, &row, query, runID); err != nil {
		return nil, err
	}
	return rowToRun(row)
}

// LatestRun returns the most recent run for a student.
func (r *AuditRepository) LatestRun(ctx context.Context, studentID string) (*models.AuditRun, error) {
	const query = `SELECT id, student_id, plan_id, status, abort_reason, summary, created_at
        FROM audit_runs WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`
	var row auditRunRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	return rowToRun(row)
}

// ListRuns returns a student's run history, newest first.
func (r *AuditRepository) ListRuns(ctx context.Context, studentID string, page, pageSize int) ([]models.AuditRun, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, student_id, plan_id, status, abort_reason, summary, created_at
        FROM audit_runs WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var rows []auditRunRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, 0, fmt.Errorf("list audit runs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_runs WHERE student_id = $1`, studentID); err != nil {
		return nil, 0, fmt.Errorf("count audit runs: %w", err)
	}

	runs := make([]models.AuditRun, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(row)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, nil
}

// ListRecommendations returns a run's ranked recommendations.
func (r *AuditRepository) ListRecommendations(ctx context.Context, runID string) ([]models.Recommendation, error) {
	const query = `SELECT id, audit_run_id, course_id, code, rank, score, unlock_count, gap_relief, rationale
        FROM recommendations WHERE audit_run_id = $1 ORDER BY rank`
	var rows []recommendationRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	recs := make([]models.Recommendation, 0, len(rows))
	for _, row := range rows {
		rec := models.Recommendation{
			ID:          row.ID,
			AuditRunID:  row.AuditRunID,
			CourseID:    row.CourseID,
			Code:        row.Code,
			Rank:        row.Rank,
			Score:       row.Score,
			UnlockCount: row.UnlockCount,
			GapRelief:   row.GapRelief,
		}
		if len(row.Rationale) > 0 {
			if err := json.Unmarshal(row.Rationale, &rec.Rationale); err != nil {
				return nil, fmt.Errorf("unmarshal rationale: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func rowToRun(row auditRunRow) (*models.AuditRun, error) {
	run := &models.AuditRun{
		ID:          row.ID,
		StudentID:   row.StudentID,
		PlanID:      row.PlanID,
		Status:      models.AuditStatus(row.Status),
		AbortReason: row.AbortReason,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Summary) > 0 {
		if err := json.Unmarshal(row.Summary, &run.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal audit summary: %w", err)
		}
	}
	return run, nil
}
