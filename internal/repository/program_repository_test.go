package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

func TestProgramRepositoryListDeclared(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT p.id, p.code, p.name, p.kind, p.catalog_year, p.created_at").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "kind", "catalog_year", "created_at"}).
			AddRow("prog-1", "CS-BS", "Computer Science", "major", "2025-2026", now))

	mock.ExpectQuery("SELECT id, program_id, parent_id, title, position, rule_kind, required_credits, required_courses, rule_min_count").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "parent_id", "title", "position", "rule_kind", "required_credits", "required_courses", "rule_min_count"}).
			AddRow("blk-root", "prog-1", nil, "Degree Requirements", 0, "all_of", nil, nil, 0).
			AddRow("blk-core", "prog-1", "blk-root", "CS Core", 0, "threshold", 12.0, nil, 0).
			AddRow("blk-elec", "prog-1", "blk-root", "CS Electives", 1, "threshold", nil, 2, 0))

	mock.ExpectQuery("SELECT m.id, m.block_id, m.course_id, m.subject, m.catalog_number, m.min_grade_points").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "block_id", "course_id", "subject", "catalog_number", "min_grade_points"}).
			AddRow("match-1", "blk-core", "c-1", "", "", nil).
			AddRow("match-2", "blk-elec", nil, "CS", "3*", 2.0))

	programs, err := repo.ListDeclared(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, programs, 1)

	program := programs[0]
	require.Equal(t, models.ProgramMajor, program.Kind)
	require.Len(t, program.Blocks, 1)

	root := program.Blocks[0]
	require.Equal(t, models.RuleAllOf, root.Rule.Kind)
	require.Len(t, root.Children, 2)
	require.Equal(t, "CS Core", root.Children[0].Title)
	require.Equal(t, 12.0, *root.Children[0].Rule.RequiredCredits)
	require.Equal(t, "c-1", *root.Children[0].Matches[0].CourseID)
	require.Equal(t, "3*", root.Children[1].Matches[0].CatalogNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryMissingParent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, code, name, kind, catalog_year, created_at FROM programs WHERE id = \\$1").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "kind", "catalog_year", "created_at"}).
			AddRow("prog-1", "CS-BS", "Computer Science", "major", "2025-2026", now))

	mock.ExpectQuery("SELECT id, program_id, parent_id, title, position, rule_kind, required_credits, required_courses, rule_min_count").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "program_id", "parent_id", "title", "position", "rule_kind", "required_credits", "required_courses", "rule_min_count"}).
			AddRow("blk-orphan", "prog-1", "blk-gone", "Orphan", 0, "threshold", nil, 1, 0))

	mock.ExpectQuery("SELECT m.id, m.block_id, m.course_id, m.subject, m.catalog_number, m.min_grade_points").
		WithArgs("prog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "block_id", "course_id", "subject", "catalog_number", "min_grade_points"}))

	_, err := repo.FindByID(context.Background(), "prog-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing parent")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, code, name, kind, catalog_year, created_at FROM programs ORDER BY code").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "kind", "catalog_year", "created_at"}).
			AddRow("prog-1", "CS-BS", "Computer Science", "major", "2025-2026", now).
			AddRow("prog-2", "MATH-MIN", "Mathematics Minor", "minor", "2025-2026", now))

	programs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 2)
	require.Empty(t, programs[0].Blocks)
	require.NoError(t, mock.ExpectationsWereMet())
}
