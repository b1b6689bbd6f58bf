package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

type stubCatalogReader struct {
	courses []models.Course
	groups  []models.RequisiteGroup
	err     error
}

func (s *stubCatalogReader) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.courses, s.err
}

func (s *stubCatalogReader) ListRequisiteGroups(ctx context.Context) ([]models.RequisiteGroup, error) {
	return s.groups, s.err
}

type stubGraphCache struct {
	graph   *models.CatalogGraph
	stored  *models.CatalogGraph
	getErr  error
	setErr  error
	setHits int
}

func (s *stubGraphCache) GetGraph(ctx context.Context) (*models.CatalogGraph, error) {
	return s.graph, s.getErr
}

func (s *stubGraphCache) SetGraph(ctx context.Context, graph *models.CatalogGraph) error {
	s.stored = graph
	s.setHits++
	return s.setErr
}

func preGroup(id, courseID string, memberIDs ...string) models.RequisiteGroup {
	group := models.RequisiteGroup{ID: id, CourseID: courseID, Kind: models.RequisitePre, Logic: models.LogicAll}
	for i, m := range memberIDs {
		member := m
		group.Members = append(group.Members, models.RequisiteGroupMember{
			ID: id + "-m" + member, GroupID: id, CourseID: &member, Position: i,
		})
	}
	return group
}

func TestBuildCatalogGraphChain(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-1300", "MATH", "1300", 4),
		mkCourse("c-2300", "MATH", "2300", 4),
		mkCourse("c-3300", "MATH", "3300", 3),
	}
	groups := []models.RequisiteGroup{
		preGroup("g-1", "c-2300", "c-1300"),
		preGroup("g-2", "c-3300", "c-2300"),
	}

	g, err := BuildCatalogGraph(courses, groups)
	require.NoError(t, err)

	assert.Equal(t, []string{"c-2300"}, g.Adjacency["c-1300"])
	assert.Equal(t, []string{"c-3300"}, g.Adjacency["c-2300"])

	// Distance grows strictly along the chain and self is never present.
	assert.Equal(t, 1, g.Reachable["c-1300"]["c-2300"])
	assert.Equal(t, 2, g.Reachable["c-1300"]["c-3300"])
	_, self := g.Reachable["c-1300"]["c-1300"]
	assert.False(t, self)

	unlocks := g.Unlocks("c-1300")
	assert.Equal(t, 1, unlocks.Direct)
	assert.Equal(t, 2, unlocks.Downstream)

	leaf := g.Unlocks("c-3300")
	assert.Zero(t, leaf.Direct)
	assert.Zero(t, leaf.Downstream)
}

func TestBuildCatalogGraphCycle(t *testing.T) {
	courses := []models.Course{
		mkCourse("c-a", "CS", "2201", 3),
		mkCourse("c-b", "CS", "3251", 3),
	}
	groups := []models.RequisiteGroup{
		preGroup("g-1", "c-b", "c-a"),
		preGroup("g-2", "c-a", "c-b"),
	}

	g, err := BuildCatalogGraph(courses, groups)
	require.Error(t, err)
	assert.Nil(t, g)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDataIntegrity))
	assert.Contains(t, err.Error(), "cyclic prerequisite chain")
	assert.Contains(t, err.Error(), "CS 2201")
	assert.Contains(t, err.Error(), "CS 3251")
}

func TestBuildCatalogGraphSelfRequisite(t *testing.T) {
	courses := []models.Course{mkCourse("c-a", "CS", "2201", 3)}
	groups := []models.RequisiteGroup{preGroup("g-1", "c-a", "c-a")}

	_, err := BuildCatalogGraph(courses, groups)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDataIntegrity))
	assert.Contains(t, err.Error(), "lists itself")
}

func TestBuildCatalogGraphWarnings(t *testing.T) {
	courses := []models.Course{mkCourse("c-a", "CS", "2201", 3)}
	groups := []models.RequisiteGroup{
		{
			ID: "g-1", CourseID: "c-a", Kind: models.RequisitePre, Logic: models.LogicAll,
			Members: []models.RequisiteGroupMember{{ID: "m-1", GroupID: "g-1", Subject: "CS", CatalogNumber: "9999"}},
		},
		preGroup("g-orphan", "c-missing", "c-a"),
	}

	g, err := BuildCatalogGraph(courses, groups)
	require.NoError(t, err)

	codes := make([]string, 0, len(g.Warnings))
	for _, w := range g.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "UNRESOLVED_MEMBER")
	assert.Contains(t, codes, "ORPHAN_GROUP")
	assert.Empty(t, g.Adjacency)
}

func TestBuildCatalogGraphAntiGroupsNoEdges(t *testing.T) {
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

	g, err := BuildCatalogGraph(courses, groups)
	require.NoError(t, err)
	assert.Empty(t, g.Adjacency)
	assert.Len(t, g.Groups["c-accel"], 1)
}

func TestCatalogGraphServiceLifecycle(t *testing.T) {
	reader := &stubCatalogReader{
		courses: []models.Course{
			mkCourse("c-1300", "MATH", "1300", 4),
			mkCourse("c-2300", "MATH", "2300", 4),
		},
		groups: []models.RequisiteGroup{preGroup("g-1", "c-2300", "c-1300")},
	}
	cache := &stubGraphCache{}
	svc := NewCatalogGraphService(reader, cache, nil, nil)

	_, err := svc.Current()
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))

	built, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, built, current)
	assert.Equal(t, 1, cache.setHits)
	assert.Same(t, built, cache.stored)
}

func TestCatalogGraphServiceWarmStart(t *testing.T) {
	t.Run("uses the cached snapshot", func(t *testing.T) {
		cached, err := BuildCatalogGraph([]models.Course{mkCourse("c-1", "CS", "1101", 3)}, nil)
		require.NoError(t, err)

		reader := &stubCatalogReader{}
		svc := NewCatalogGraphService(reader, &stubGraphCache{graph: cached}, nil, nil)
		require.NoError(t, svc.WarmStart(context.Background()))

		current, err := svc.Current()
		require.NoError(t, err)
		assert.Same(t, cached, current)
	})

	t.Run("rebuilds on cache miss", func(t *testing.T) {
		reader := &stubCatalogReader{courses: []models.Course{mkCourse("c-1", "CS", "1101", 3)}}
		svc := NewCatalogGraphService(reader, &stubGraphCache{getErr: assert.AnError}, nil, nil)
		require.NoError(t, svc.WarmStart(context.Background()))

		current, err := svc.Current()
		require.NoError(t, err)
		assert.Len(t, current.Courses, 1)
	})
}
