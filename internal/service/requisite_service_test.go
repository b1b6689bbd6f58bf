package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

func mkCourse(id, subject, number string, credits float64) models.Course {
	return models.Course{ID: id, Subject: subject, CatalogNumber: number, Title: subject + " " + number, Credits: credits}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(n int) *int { return &n }

func mkCompletion(courseID string, credits, gradePoints float64) models.Completion {
	return models.Completion{ID: "cmp-" + courseID, StudentID: "stu-1", CourseID: &courseID, Credits: credits, Grade: "A", GradePoints: gradePoints, Verified: true}
}

func buildTestGraph(t *testing.T, courses []models.Course, groups []models.RequisiteGroup) *models.CatalogGraph {
	t.Helper()
	g, err := BuildCatalogGraph(courses, groups)
	require.NoError(t, err)
	return g
}

func TestEvaluatePrerequisiteChain(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-2300", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", CourseID: strPtr("c-1300")}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	t.Run("unmet prerequisite blocks the course", func(t *testing.T) {
		st := NewStudentState(g, nil, nil)
		result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
		require.Len(t, result.UnmetMembers, 1)
		assert.Equal(t, "MATH 1300", result.UnmetMembers[0].Code)
		assert.Equal(t, models.RequisitePre, result.UnmetMembers[0].Kind)
	})

	t.Run("completed prerequisite satisfies", func(t *testing.T) {
		st := NewStudentState(g, []models.Completion{mkCompletion("c-1300", 4, 3.0)}, nil)
		result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

		assert.Equal(t, models.RequisiteSatisfied, result.Status)
		assert.True(t, result.Eligible())
		assert.Empty(t, result.UnmetMembers)
	})

	t.Run("no groups means satisfied", func(t *testing.T) {
		st := NewStudentState(g, nil, nil)
		result := svc.Evaluate(g, g.Courses["c-1300"], st, nil)

		assert.Equal(t, models.RequisiteSatisfied, result.Status)
	})

	t.Run("unverified completion satisfies nothing", func(t *testing.T) {
		pending := mkCompletion("c-1300", 4, 3.0)
		pending.Verified = false
		st := NewStudentState(g, []models.Completion{pending}, nil)
		result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
		require.Len(t, result.UnmetMembers, 1)
		assert.Equal(t, "MATH 1300", result.UnmetMembers[0].Code)
	})
}

func TestEvaluateMinCountBoundary(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-a", "CS", "2201", 3),
		mkCourse("c-b", "CS", "3251", 3),
		mkCourse("c-c", "CS", "3270", 3),
		mkCourse("c-target", "CS", "4959", 3),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-min", CourseID: "c-target", Kind: models.RequisitePre, Logic: models.LogicMinCount, MinCount: 2,
			Members: []models.RequisiteGroupMember{
				{ID: "m-a", GroupID: "g-min", CourseID: strPtr("c-a")},
				{ID: "m-b", GroupID: "g-min", CourseID: strPtr("c-b")},
				{ID: "m-c", GroupID: "g-min", CourseID: strPtr("c-c")},
			},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	t.Run("exactly n satisfies", func(t *testing.T) {
		st := NewStudentState(g, []models.Completion{mkCompletion("c-a", 3, 3.0), mkCompletion("c-c", 3, 2.7)}, nil)
		result := svc.Evaluate(g, g.Courses["c-target"], st, nil)

		assert.Equal(t, models.RequisiteSatisfied, result.Status)
	})

	t.Run("n minus one does not", func(t *testing.T) {
		st := NewStudentState(g, []models.Completion{mkCompletion("c-a", 3, 3.0)}, nil)
		result := svc.Evaluate(g, g.Courses["c-target"], st, nil)

		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
		require.Len(t, result.UnmetMembers, 2)
		// Unmet members come back in code order.
		assert.Equal(t, "CS 3251", result.UnmetMembers[0].Code)
		assert.Equal(t, "CS 3270", result.UnmetMembers[1].Code)
	})
}

func TestEvaluateGradeMinimum(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-2300", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", CourseID: strPtr("c-1300"), MinGradePts: floatPtr(2.0)}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	st := NewStudentState(g, []models.Completion{mkCompletion("c-1300", 4, 1.7)}, nil)
	result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

	assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
	require.Len(t, result.UnmetMembers, 1)
	assert.Contains(t, result.UnmetMembers[0].Reason, "grade 1.7 below required 2.0")
}

func TestEvaluateRepeatedCourseKeepsBestGrade(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-2300", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", CourseID: strPtr("c-1300"), MinGradePts: floatPtr(2.0)}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	st := NewStudentState(g, []models.Completion{
		mkCompletion("c-1300", 4, 0.7),
		mkCompletion("c-1300", 4, 3.3),
	}, nil)
	result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

	assert.Equal(t, models.RequisiteSatisfied, result.Status)
}

func TestEvaluateCorequisiteConcurrent(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-lab", "PHYS", "1601L", 1),
		mkCourse("c-lec", "PHYS", "1601", 3),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-co", CourseID: "c-lab", Kind: models.RequisiteCo, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-co", CourseID: strPtr("c-lec"), ConcurrentOK: true}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)
	st := NewStudentState(g, nil, nil)

	t.Run("planned in the same term counts", func(t *testing.T) {
		result := svc.Evaluate(g, g.Courses["c-lab"], st, map[string]bool{"c-lec": true})
		assert.Equal(t, models.RequisiteSatisfied, result.Status)
	})

	t.Run("not planned does not", func(t *testing.T) {
		result := svc.Evaluate(g, g.Courses["c-lab"], st, nil)
		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
	})
}

func TestEvaluateAntiRequisite(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-intro", "CS", "1101", 3),
		mkCourse("c-accel", "CS", "1104", 3),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-anti", CourseID: "c-accel", Kind: models.RequisiteAnti, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-anti", CourseID: strPtr("c-intro")}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	t.Run("earned credit makes the course ineligible", func(t *testing.T) {
		st := NewStudentState(g, []models.Completion{mkCompletion("c-intro", 3, 3.0)}, nil)
		result := svc.Evaluate(g, g.Courses["c-accel"], st, nil)

		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
		require.Len(t, result.UnmetMembers, 1)
		assert.Equal(t, models.RequisiteAnti, result.UnmetMembers[0].Kind)
	})

	t.Run("planned work never triggers an anti group", func(t *testing.T) {
		st := NewStudentState(g, nil, nil)
		result := svc.Evaluate(g, g.Courses["c-accel"], st, map[string]bool{"c-intro": true})

		assert.Equal(t, models.RequisiteSatisfied, result.Status)
	})

	t.Run("a course waiver never overrides an anti violation", func(t *testing.T) {
		waivers := []models.Waiver{{ID: "w-1", StudentID: "stu-1", Kind: models.WaiverCourse, RequiredCourseID: strPtr("c-accel")}}
		st := NewStudentState(g, []models.Completion{mkCompletion("c-intro", 3, 3.0)}, waivers)
		result := svc.Evaluate(g, g.Courses["c-accel"], st, nil)

		assert.Equal(t, models.RequisiteUnsatisfied, result.Status)
	})
}

func TestEvaluateWaiverOverridesPrerequisite(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-2300", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", CourseID: strPtr("c-1300")}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	waivers := []models.Waiver{{ID: "w-1", StudentID: "stu-1", Kind: models.WaiverCourse, RequiredCourseID: strPtr("c-2300")}}
	st := NewStudentState(g, nil, waivers)
	result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

	assert.Equal(t, models.RequisiteSatisfiedWithWaiver, result.Status)
	assert.True(t, result.Eligible())
}

func TestEvaluateSubstituteWaiver(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-1301", "MATH", "1301", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-2300", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", CourseID: strPtr("c-1300")}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	waivers := []models.Waiver{{
		ID: "w-1", StudentID: "stu-1", Kind: models.WaiverSubstitute,
		RequiredCourseID: strPtr("c-1300"), SubstituteCourseID: strPtr("c-1301"),
	}}
	st := NewStudentState(g, []models.Completion{mkCompletion("c-1301", 4, 3.0)}, waivers)
	result := svc.Evaluate(g, g.Courses["c-2300"], st, nil)

	assert.Equal(t, models.RequisiteSatisfied, result.Status)
}

func TestCompileGroupsVacuous(t *testing.T) {
	courses := []models.Course{mkCourse("c-1", "HIST", "1010", 3)}
	groups := []models.RequisiteGroup{
		{
			ID: "g-v", CourseID: "c-1", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-v", Subject: "HIST", CatalogNumber: "0999"}},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)

	exprs, warnings := svc.CompileGroups(g, "c-1")
	require.Len(t, exprs, 1)
	assert.True(t, exprs[0].Vacuous)
	assert.Len(t, warnings, 2) // unresolved member + vacuous group

	st := NewStudentState(g, nil, nil)
	result := svc.Evaluate(g, g.Courses["c-1"], st, nil)
	assert.Equal(t, models.RequisiteSatisfied, result.Status)
	assert.NotEmpty(t, result.Warnings)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-a", "CS", "2201", 3),
		mkCourse("c-b", "CS", "3251", 3),
		mkCourse("c-target", "CS", "4287", 3),
	}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-target", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{
				{ID: "m-a", GroupID: "g-1", CourseID: strPtr("c-a")},
				{ID: "m-b", GroupID: "g-1", CourseID: strPtr("c-b")},
			},
		},
	}
	g := buildTestGraph(t, courses, groups)
	svc := NewRequisiteService(nil)
	st := NewStudentState(g, []models.Completion{mkCompletion("c-a", 3, 3.0)}, nil)

	first := svc.Evaluate(g, g.Courses["c-target"], st, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, svc.Evaluate(g, g.Courses["c-target"], st, nil))
	}
}
