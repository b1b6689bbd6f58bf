package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

// ProgramRepository handles persistence of programs and their
// requirement-block trees.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

type blockRow struct {
	ID              string   `db:"id"`
	ProgramID       string   `db:"program_id"`
	ParentID        *string  `db:"parent_id"`
	Title           string   `db:"title"`
	Position        int      `db:"position"`
	RuleKind        string   `db:"rule_kind"`
	RequiredCredits *float64 `db:"required_credits"`
	RequiredCourses *int     `db:"required_courses"`
	RuleMinCount    int      `db:"rule_min_count"`
}

// ListDeclared returns the programs a student has declared, each with
// its full requirement tree attached.
func (r *ProgramRepository) ListDeclared(ctx context.Context, studentID string) ([]models.Program, error) {
	const query = `SELECT p.id, p.code, p.name, p.kind, p.catalog_year, p.created_at
        FROM programs p
        JOIN student_programs sp ON sp.program_id = p.id
        WHERE sp.student_id = $1
        ORDER BY sp.declared_at`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, studentID); err != nil {
		return nil, fmt.Errorf("list declared programs: %w", err)
	}
	for i := range programs {
		blocks, err := r.loadBlockTree(ctx, programs[i].ID)
		if err != nil {
			return nil, err
		}
		programs[i].Blocks = blocks
	}
	return programs, nil
}

// FindByID returns a program with its requirement tree.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, code, name, kind, catalog_year, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	blocks, err := r.loadBlockTree(ctx, program.ID)
	if err != nil {
		return nil, err
	}
	program.Blocks = blocks
	return &program, nil
}

// List returns all programs without block trees.
func (r *ProgramRepository) List(ctx context.Context) ([]models.Program, error) {
	const query = `SELECT id, code, name, kind, catalog_year, created_at FROM programs ORDER BY code`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// loadBlockTree assembles the requirement tree from the flat block and
// match tables. Parents reference only blocks of the same program, so
// one pass over the rows is enough.
func (r *ProgramRepository) loadBlockTree(ctx context.Context, programID string) ([]*models.RequirementBlock, error) {
	const blockQuery = `SELECT id, program_id, parent_id, title, position, rule_kind, required_credits, required_courses, rule_min_count
        FROM requirement_blocks WHERE program_id = $1 ORDER BY position`
	var rows []blockRow
	if err := r.db.SelectContext(ctx, &rows, blockQuery, programID); err != nil {
		return nil, fmt.Errorf("list requirement blocks: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	const matchQuery = `SELECT m.id, m.block_id, m.course_id, m.subject, m.catalog_number, m.min_grade_points
        FROM block_course_matches m
        JOIN requirement_blocks b ON b.id = m.block_id
        WHERE b.program_id = $1`
	var matches []models.BlockCourseMatch
	if err := r.db.SelectContext(ctx, &matches, matchQuery, programID); err != nil {
		return nil, fmt.Errorf("list block course matches: %w", err)
	}
	matchesByBlock := make(map[string][]models.BlockCourseMatch)
	for _, m := range matches {
		matchesByBlock[m.BlockID] = append(matchesByBlock[m.BlockID], m)
	}

	byID := make(map[string]*models.RequirementBlock, len(rows))
	for _, row := range rows {
		byID[row.ID] = &models.RequirementBlock{
			ID:        row.ID,
			ProgramID: row.ProgramID,
			ParentID:  row.ParentID,
			Title:     row.Title,
			Position:  row.Position,
			Rule: models.BlockRule{
				Kind:            models.BlockRuleKind(row.RuleKind),
				RequiredCredits: row.RequiredCredits,
				RequiredCourses: row.RequiredCourses,
				MinCount:        row.RuleMinCount,
			},
			Matches: matchesByBlock[row.ID],
		}
	}

	var roots []*models.RequirementBlock
	for _, row := range rows {
		block := byID[row.ID]
		if row.ParentID == nil || *row.ParentID == "" {
			roots = append(roots, block)
			continue
		}
		parent, ok := byID[*row.ParentID]
		if !ok {
			return nil, fmt.Errorf("requirement block %s references missing parent %s", row.ID, *row.ParentID)
		}
		parent.Children = append(parent.Children, block)
	}
	return roots, nil
}
