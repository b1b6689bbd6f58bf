package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

type catalogReader interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListRequisiteGroups(ctx context.Context) ([]models.RequisiteGroup, error)
}

type graphCache interface {
	GetGraph(ctx context.Context) (*models.CatalogGraph, error)
	SetGraph(ctx context.Context, graph *models.CatalogGraph) error
}

// CatalogGraphService owns the derived course unlock graph. Snapshots
// are built whole and published with an atomic swap so concurrent audits
// never observe a half-built graph.
type CatalogGraphService struct {
	catalog catalogReader
	cache   graphCache
	metrics *MetricsService
	logger  *zap.Logger

	current atomic.Pointer[models.CatalogGraph]
}

// NewCatalogGraphService constructs the graph holder. The cache is
// optional and only used as a warm-start shortcut.
func NewCatalogGraphService(catalog catalogReader, cache graphCache, metrics *MetricsService, logger *zap.Logger) *CatalogGraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogGraphService{catalog: catalog, cache: cache, metrics: metrics, logger: logger}
}

// Current returns the active graph snapshot.
func (s *CatalogGraphService) Current() (*models.CatalogGraph, error) {
	g := s.current.Load()
	if g == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "catalog graph not built yet")
	}
	return g, nil
}

// Rebuild loads the catalog, builds a fresh snapshot and swaps it in.
// It must be called whenever any course's requisite groups change; the
// result is otherwise cacheable indefinitely.
func (s *CatalogGraphService) Rebuild(ctx context.Context) (*models.CatalogGraph, error) {
	start := time.Now()

	courses, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	groups, err := s.catalog.ListRequisiteGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisite groups")
	}

	graph, err := BuildCatalogGraph(courses, groups)
	if err != nil {
		return nil, err
	}

	s.current.Store(graph)
	if s.metrics != nil {
		s.metrics.ObserveGraphRebuild(len(graph.Courses), time.Since(start))
	}
	s.logger.Sugar().Infow("catalog graph rebuilt",
		"courses", len(graph.Courses),
		"warnings", len(graph.Warnings),
		"duration", time.Since(start))

	if s.cache != nil {
		if err := s.cache.SetGraph(ctx, graph); err != nil {
			s.logger.Sugar().Warnw("failed to cache catalog graph", "error", err)
		}
	}
	return graph, nil
}

// WarmStart publishes a cached snapshot when available and rebuilds
// otherwise.
func (s *CatalogGraphService) WarmStart(ctx context.Context) error {
	if s.cache != nil {
		if graph, err := s.cache.GetGraph(ctx); err == nil && graph != nil {
			s.current.Store(graph)
			s.metrics.RecordCacheOperation(true)
			s.logger.Sugar().Infow("catalog graph restored from cache", "built_at", graph.BuiltAt)
			return nil
		}
		s.metrics.RecordCacheOperation(false)
	}
	_, err := s.Rebuild(ctx)
	return err
}

// BuildCatalogGraph derives the unlock graph and its transitive
// reachability from the course set and the pre/co requisite groups.
// Cyclic prerequisite data is a data-integrity error naming the cycle;
// no snapshot is produced for it.
func BuildCatalogGraph(courses []models.Course, groups []models.RequisiteGroup) (*models.CatalogGraph, error) {
	graph := &models.CatalogGraph{
		BuiltAt:   time.Now().UTC(),
		Courses:   make(map[string]models.Course, len(courses)),
		CodeIndex: make(map[string]string, len(courses)),
		Groups:    make(map[string][]models.RequisiteGroup),
		Adjacency: make(map[string][]string),
		Reachable: make(map[string]map[string]int),
	}
	for _, course := range courses {
		graph.Courses[course.ID] = course
		graph.CodeIndex[course.Code()] = course.ID
	}

	edges := make(map[string]map[string]bool)
	for _, group := range groups {
		graph.Groups[group.CourseID] = append(graph.Groups[group.CourseID], group)
		if group.Kind == models.RequisiteAnti {
			continue
		}
		if _, ok := graph.Courses[group.CourseID]; !ok {
			graph.Warnings = append(graph.Warnings, models.GraphWarning{
				CourseID: group.CourseID,
				Code:     "ORPHAN_GROUP",
				Message:  fmt.Sprintf("requisite group %s references unknown course %s", group.ID, group.CourseID),
			})
			continue
		}
		for _, member := range group.Members {
			from, ok := resolveMemberCourseID(graph, member)
			if !ok {
				graph.Warnings = append(graph.Warnings, models.GraphWarning{
					CourseID: group.CourseID,
					Code:     "UNRESOLVED_MEMBER",
					Message: fmt.Sprintf("requisite group %s: member %s does not match any catalog course",
						group.ID, models.CourseCode(member.Subject, member.CatalogNumber)),
				})
				continue
			}
			if from == group.CourseID {
				return nil, appErrors.Clone(appErrors.ErrDataIntegrity,
					fmt.Sprintf("course %s lists itself as a requisite", graph.Courses[from].Code()))
			}
			if edges[from] == nil {
				edges[from] = make(map[string]bool)
			}
			edges[from][group.CourseID] = true
		}
	}

	for from, tos := range edges {
		list := make([]string, 0, len(tos))
		for to := range tos {
			list = append(list, to)
		}
		sort.Slice(list, func(i, j int) bool {
			return graph.Courses[list[i]].Code() < graph.Courses[list[j]].Code()
		})
		graph.Adjacency[from] = list
	}

	if cycle := findCycle(graph.Adjacency); len(cycle) > 0 {
		codes := make([]string, 0, len(cycle))
		for _, id := range cycle {
			codes = append(codes, graph.Courses[id].Code())
		}
		return nil, appErrors.Clone(appErrors.ErrDataIntegrity,
			fmt.Sprintf("cyclic prerequisite chain: %s", strings.Join(codes, " -> ")))
	}

	for id := range graph.Courses {
		if dist := bfsDistances(graph.Adjacency, id); len(dist) > 0 {
			graph.Reachable[id] = dist
		}
	}

	return graph, nil
}

func resolveMemberCourseID(g *models.CatalogGraph, member models.RequisiteGroupMember) (string, bool) {
	if member.CourseID != nil && *member.CourseID != "" {
		if _, ok := g.Courses[*member.CourseID]; ok {
			return *member.CourseID, true
		}
		return "", false
	}
	id, ok := g.CodeIndex[models.CourseCode(member.Subject, member.CatalogNumber)]
	return id, ok
}

// bfsDistances returns the shortest unlock distance from start to every
// reachable course. The start itself is excluded: distance 0 is
// disallowed by definition.
func bfsDistances(adjacency map[string][]string, start string) map[string]int {
	dist := make(map[string]int)
	queue := []string{start}
	dist[start] = 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[node] + 1
			queue = append(queue, next)
		}
	}
	delete(dist, start)
	if len(dist) == 0 {
		return nil
	}
	return dist
}

// findCycle runs an iterative three-color DFS over the adjacency map and
// returns the members of the first cycle found, in path order.
func findCycle(adjacency map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	parent := make(map[string]string)

	roots := make([]string, 0, len(adjacency))
	for node := range adjacency {
		roots = append(roots, node)
	}
	sort.Strings(roots)

	for _, root := range roots {
		if color[root] != white {
			continue
		}
		type frame struct {
			node string
			next int
		}
		stack := []frame{{node: root}}
		color[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adjacency[top.node]
			if top.next < len(neighbors) {
				next := neighbors[top.next]
				top.next++
				switch color[next] {
				case white:
					color[next] = gray
					parent[next] = top.node
					stack = append(stack, frame{node: next})
				case gray:
					// Walk parents back to close the cycle.
					var cycle []string
					for at := top.node; ; at = parent[at] {
						cycle = append(cycle, at)
						if at == next {
							break
						}
					}
					for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
						cycle[i], cycle[j] = cycle[j], cycle[i]
					}
					return append(cycle, next)
				}
				continue
			}
			color[top.node] = black
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}
