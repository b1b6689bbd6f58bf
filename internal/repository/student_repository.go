package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

// StudentRepository handles the student-facing record: completions,
// waivers, preferences and plans.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListCompletions returns a student's earned courses. Completions are
// append-only; repeats stay as separate rows.
func (r *StudentRepository) ListCompletions(ctx context.Context, studentID string) ([]models.Completion, error) {
	const query = `SELECT id, student_id, course_id, subject, catalog_number, credits, grade, grade_points, external, verified, term_taken, created_at
        FROM completions WHERE student_id = $1 ORDER BY created_at`
	var completions []models.Completion
	if err := r.db.SelectContext(ctx, &completions, query, studentID); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// CreateCompletion appends one completion row.
func (r *StudentRepository) CreateCompletion(ctx context.Context, completion *models.Completion) error {
	if completion.ID == "" {
		completion.ID = uuid.NewString()
	}
	if completion.CreatedAt.IsZero() {
		completion.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO completions (id, student_id, course_id, subject, catalog_number, credits, grade, grade_points, external, verified, term_taken, created_at)
        VALUES (:id, :student_id, :course_id, :subject, :catalog_number, :credits, :grade, :grade_points, :external, :verified, :term_taken, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, completion); err != nil {
		return fmt.Errorf("create completion: %w", err)
	}
	return nil
}

// ListWaivers returns a student's advisor overrides.
func (r *StudentRepository) ListWaivers(ctx context.Context, studentID string) ([]models.Waiver, error) {
	const query = `SELECT id, student_id, kind, block_id, required_course_id, substitute_course_id, reason, approved_by, created_at
        FROM waivers WHERE student_id = $1 ORDER BY created_at`
	var waivers []models.Waiver
	if err := r.db.SelectContext(ctx, &waivers, query, studentID); err != nil {
		return nil, fmt.Errorf("list waivers: %w", err)
	}
	return waivers, nil
}

// GetPreferences returns a student's scoring preferences.
func (r *StudentRepository) GetPreferences(ctx context.Context, studentID string) (*models.Preferences, error) {
	const query = `SELECT student_id, min_credits, max_credits, time_of_day, updated_at FROM preferences WHERE student_id = $1`
	var prefs models.Preferences
	if err := r.db.GetContext(ctx, &prefs, query, studentID); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// UpsertPreferences writes the per-student scoring knobs.
func (r *StudentRepository) UpsertPreferences(ctx context.Context, prefs *models.Preferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO preferences (student_id, min_credits, max_credits, time_of_day, updated_at)
        VALUES (:student_id, :min_credits, :max_credits, :time_of_day, :updated_at)
        ON CONFLICT (student_id) DO UPDATE SET
            min_credits = EXCLUDED.min_credits,
            max_credits = EXCLUDED.max_credits,
            time_of_day = EXCLUDED.time_of_day,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, prefs); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetPlan returns a plan with its terms and items in position order.
func (r *StudentRepository) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	const planQuery = `SELECT id, student_id, name, created_at, updated_at FROM plans WHERE id = $1`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, planQuery, planID); err != nil {
		return nil, err
	}

	const termQuery = `SELECT id, plan_id, position, season, year FROM plan_terms WHERE plan_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &plan.Terms, termQuery, planID); err != nil {
		return nil, fmt.Errorf("list plan terms: %w", err)
	}

	const itemQuery = `SELECT i.id, i.plan_term_id, i.course_id, i.backup, i.position
        FROM plan_items i
        JOIN plan_terms t ON t.id = i.plan_term_id
        WHERE t.plan_id = $1 ORDER BY i.position`
	var items []models.PlanItem
	if err := r.db.SelectContext(ctx, &items, itemQuery, planID); err != nil {
		return nil, fmt.Errorf("list plan items: %w", err)
	}
	itemsByTerm := make(map[string][]models.PlanItem)
	for _, item := range items {
		itemsByTerm[item.TermID] = append(itemsByTerm[item.TermID], item)
	}
	for i := range plan.Terms {
		plan.Terms[i].Items = itemsByTerm[plan.Terms[i].ID]
	}
	return &plan, nil
}
