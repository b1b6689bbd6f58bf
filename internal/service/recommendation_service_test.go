package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
	"github.com/noah-isme/degree-audit-api/pkg/config"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

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

func eligible(courseID, code string) models.CourseEligibility {
	return models.CourseEligibility{CourseID: courseID, Code: code, Status: models.RequisiteSatisfied}
}

func TestNewRecommendationServiceRejectsBadWeights(t *testing.T) {
	cfg := testScorerConfig()
	cfg.UnlockWeight = -1

	_, err := NewRecommendationService(cfg, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConfiguration))
}

func TestRecommendOrdering(t *testing.T) {
	// Chain: 1300 unlocks 2300 unlocks 3300. 2201 unlocks nothing.
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
		mkCourse("c-3300", "MATH", "3300", 3),
		mkCourse("c-2201", "CS", "2201", 3),
	}
	groups := []models.RequisiteGroup{
		preGroup("g-1", "c-2300", "c-1300"),
		preGroup("g-2", "c-3300", "c-2300"),
	}
	g := buildTestGraph(t, courses, groups)

	svc, err := NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-1300", "MATH 1300"),
			eligible("c-2201", "CS 2201"),
		},
		Student: NewStudentState(g, nil, nil),
	})

	require.Len(t, recs, 2)
	assert.Equal(t, "MATH 1300", recs[0].Code)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, 1, recs[0].UnlockCount)
	assert.Equal(t, "CS 2201", recs[1].Code)
	assert.Equal(t, 2, recs[1].Rank)
	assert.Greater(t, recs[0].Score, recs[1].Score)
}

func TestRecommendTieBreaks(t *testing.T) {
	// No unlocks, no gaps: everything scores identically and the ranking
	// falls through to level, subject and number.
	courses := []models.Course{
		mkCourse("c-hist3", "HIST", "3000", 3),
		mkCourse("c-anth1", "ANTH", "1101", 3),
		mkCourse("c-hist1", "HIST", "1010", 3),
		mkCourse("c-hist1b", "HIST", "1020", 3),
	}
	g := buildTestGraph(t, courses, nil)

	svc, err := NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-hist3", "HIST 3000"),
			eligible("c-hist1b", "HIST 1020"),
			eligible("c-anth1", "ANTH 1101"),
			eligible("c-hist1", "HIST 1010"),
		},
		Student: NewStudentState(g, nil, nil),
	})

	require.Len(t, recs, 4)
	assert.Equal(t, "ANTH 1101", recs[0].Code)
	assert.Equal(t, "HIST 1010", recs[1].Code)
	assert.Equal(t, "HIST 1020", recs[2].Code)
	assert.Equal(t, "HIST 3000", recs[3].Code)
}

func TestRecommendExclusions(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-a", "CS", "1101", 3),
		mkCourse("c-b", "CS", "2201", 3),
		mkCourse("c-c", "CS", "3251", 3),
	}
	g := buildTestGraph(t, courses, nil)

	svc, err := NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-a", "CS 1101"),
			eligible("c-b", "CS 2201"),
			eligible("c-c", "CS 3251"),
			{CourseID: "c-x", Code: "CS 9999", Status: models.RequisiteUnsatisfied},
		},
		Student: NewStudentState(g, []models.Completion{mkCompletion("c-a", 3, 3.0)}, nil),
		Pinned:  map[string]bool{"c-b": true},
	})

	require.Len(t, recs, 1)
	assert.Equal(t, "CS 3251", recs[0].Code)
}

func TestRecommendGapRelief(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-a", "CS", "2201", 3),
		mkCourse("c-b", "HIST", "1010", 3),
	}
	g := buildTestGraph(t, courses, nil)

	svc, err := NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)

	programs := []models.ProgramResult{{
		ProgramID: "p-1", Code: "CS", Name: "Computer Science", Status: models.BlockPartiallySatisfied,
		Blocks: []models.BlockResult{{
			BlockID: "b-1", Title: "CS Core", Status: models.BlockPartiallySatisfied,
			UnmetMatches: []models.UnmetMatch{
				{BlockID: "b-1", BlockTitle: "CS Core", CourseID: "c-a", Code: "CS 2201", Credits: 3},
			},
		}},
	}}

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-a", "CS 2201"),
			eligible("c-b", "HIST 1010"),
		},
		Programs: programs,
		Student:  NewStudentState(g, nil, nil),
	})

	require.Len(t, recs, 2)
	assert.Equal(t, "CS 2201", recs[0].Code)
	assert.Greater(t, recs[0].GapRelief, 0.0)
	assert.Contains(t, recs[0].Rationale, `counts toward unmet requirement "CS Core"`)
	assert.Equal(t, []string{"eligible elective"}, recs[1].Rationale)
}

func TestRecommendAvailabilityAndConflict(t *testing.T) {
	offered := mkCourse("c-a", "CS", "2201", 3)
	offered.OfferedFall = true
	notOffered := mkCourse("c-b", "CS", "2212", 3)
	heavy := mkCourse("c-c", "CS", "2281", 6)
	heavy.OfferedFall = true

	g := buildTestGraph(t, []models.Course{offered, notOffered, heavy}, nil)

	svc, err := NewRecommendationService(testScorerConfig(), nil)
	require.NoError(t, err)

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-a", "CS 2201"),
			eligible("c-b", "CS 2212"),
			eligible("c-c", "CS 2281"),
		},
		Student:      NewStudentState(g, nil, nil),
		PinnedLoad:   13,
		TargetSeason: models.SeasonFall,
		Preferences:  models.Preferences{MaxCredits: 15},
	})

	require.Len(t, recs, 3)
	// Offered + fits beats offered + overload beats not offered.
	assert.Equal(t, "CS 2201", recs[0].Code)
	assert.Contains(t, recs[0].Rationale, "offered in fall")
	assert.Contains(t, recs[1].Rationale, "would exceed the preferred credit load")
}

func TestRecommendCapsList(t *testing.T) {
	cfg := testScorerConfig()
	cfg.MaxRecommendations = 2

	courses := []models.Course{
		mkCourse("c-a", "CS", "1101", 3),
		mkCourse("c-b", "CS", "2201", 3),
		mkCourse("c-c", "CS", "3251", 3),
	}
	g := buildTestGraph(t, courses, nil)

	svc, err := NewRecommendationService(cfg, nil)
	require.NoError(t, err)

	recs := svc.Recommend(ScoreInput{
		Graph: g,
		Eligibility: []models.CourseEligibility{
			eligible("c-a", "CS 1101"),
			eligible("c-b", "CS 2201"),
			eligible("c-c", "CS 3251"),
		},
		Student: NewStudentState(g, nil, nil),
	})

	assert.Len(t, recs, 2)
}
