package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

func TestStudentRepositoryListCompletions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "subject", "catalog_number", "credits", "grade", "grade_points", "external", "verified", "term_taken", "created_at"}).
		AddRow("comp-1", "stu-1", "c-1", "MATH", "1300", 4.0, "A", 4.0, false, true, "2025 Fall", now).
		AddRow("comp-2", "stu-1", nil, "HIST", "1010", 3.0, "B+", 3.3, true, true, "2025 Fall", now)
	mock.ExpectQuery("SELECT id, student_id, course_id, .+ FROM completions WHERE student_id = \\$1 ORDER BY created_at").
		WithArgs("stu-1").
		WillReturnRows(rows)

	completions, err := repo.ListCompletions(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, completions, 2)
	require.Equal(t, "c-1", *completions[0].CourseID)
	require.Nil(t, completions[1].CourseID)
	require.True(t, completions[1].External)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetPreferencesMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT student_id, min_credits, max_credits, time_of_day, updated_at FROM preferences WHERE student_id = \\$1").
		WithArgs("stu-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPreferences(context.Background(), "stu-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertPreferences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO preferences").
		WillReturnResult(sqlmock.NewResult(0, 1))

	prefs := &models.Preferences{StudentID: "stu-1", MinCredits: 12, MaxCredits: 16, TimeOfDay: "morning"}
	require.NoError(t, repo.UpsertPreferences(context.Background(), prefs))
	require.False(t, prefs.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, student_id, name, created_at, updated_at FROM plans WHERE id = \\$1").
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "name", "created_at", "updated_at"}).
			AddRow("plan-1", "stu-1", "Four year plan", now, now))

	mock.ExpectQuery("SELECT id, plan_id, position, season, year FROM plan_terms WHERE plan_id = \\$1 ORDER BY position").
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_id", "position", "season", "year"}).
			AddRow("term-0", "plan-1", 0, "fall", 2026).
			AddRow("term-1", "plan-1", 1, "spring", 2027))

	mock.ExpectQuery("SELECT i.id, i.plan_term_id, i.course_id, i.backup, i.position").
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_term_id", "course_id", "backup", "position"}).
			AddRow("item-1", "term-0", "c-1", false, 0).
			AddRow("item-2", "term-0", "c-2", true, 1).
			AddRow("item-3", "term-1", "c-3", false, 0))

	plan, err := repo.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Equal(t, "stu-1", plan.StudentID)
	require.Len(t, plan.Terms, 2)
	require.Len(t, plan.Terms[0].Items, 2)
	require.True(t, plan.Terms[0].Items[1].Backup)
	require.Len(t, plan.Terms[1].Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateCompletion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO completions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	completion := &models.Completion{StudentID: "stu-1", Subject: "MATH", CatalogNum: "1300", Credits: 4, Grade: "A", GradePoints: 4}
	require.NoError(t, repo.CreateCompletion(context.Background(), completion))
	require.NotEmpty(t, completion.ID)
	require.False(t, completion.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
