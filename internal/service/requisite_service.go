package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
)

// StudentState is the immutable per-student snapshot the evaluators read.
// Completions are keyed by resolved catalog course ID; substitutions maps
// a required course to the completed course an advisor accepted in its
// place.
type StudentState struct {
	Completions   map[string]models.Completion
	Waivers       []models.Waiver
	substitutions map[string]string
	waivedCourses map[string]bool
	waivedBlocks  map[string]bool
}

// NewStudentState resolves a student's raw completion and waiver records
// against the catalog snapshot. Only verified completions enter the ID
// index; pending transfer credit satisfies nothing until it clears.
// External completions with no catalog match are likewise kept out; they
// cannot satisfy structured requisites.
func NewStudentState(g *models.CatalogGraph, completions []models.Completion, waivers []models.Waiver) StudentState {
	st := StudentState{
		Completions:   make(map[string]models.Completion, len(completions)),
		Waivers:       waivers,
		substitutions: make(map[string]string),
		waivedCourses: make(map[string]bool),
		waivedBlocks:  make(map[string]bool),
	}
	for _, c := range completions {
		if !c.Verified {
			continue
		}
		id := ""
		if c.CourseID != nil && *c.CourseID != "" {
			id = *c.CourseID
		} else if resolved, ok := g.ResolveCode(c.Subject, c.CatalogNum); ok {
			id = resolved.ID
		}
		if id == "" {
			continue
		}
		// Keep the best grade when a course was repeated.
		if prev, ok := st.Completions[id]; !ok || c.GradePoints > prev.GradePoints {
			st.Completions[id] = c
		}
	}
	for _, w := range waivers {
		switch w.Kind {
		case models.WaiverSubstitute:
			if w.RequiredCourseID != nil && w.SubstituteCourseID != nil {
				st.substitutions[*w.RequiredCourseID] = *w.SubstituteCourseID
			}
		case models.WaiverCourse:
			if w.RequiredCourseID != nil {
				st.waivedCourses[*w.RequiredCourseID] = true
			}
		case models.WaiverBlock:
			if w.BlockID != nil {
				st.waivedBlocks[*w.BlockID] = true
			}
		}
	}
	return st
}

// CompletionFor returns the completion counting for a course, following
// substitute waivers.
func (st StudentState) CompletionFor(courseID string) (models.Completion, bool) {
	if c, ok := st.Completions[courseID]; ok {
		return c, true
	}
	if sub, ok := st.substitutions[courseID]; ok {
		if c, ok := st.Completions[sub]; ok {
			return c, true
		}
	}
	return models.Completion{}, false
}

// CourseWaived reports whether an advisor waived the course outright.
func (st StudentState) CourseWaived(courseID string) bool {
	return st.waivedCourses[courseID]
}

// BlockWaived reports whether an advisor waived the requirement block.
func (st StudentState) BlockWaived(blockID string) bool {
	return st.waivedBlocks[blockID]
}

// RequisiteService evaluates a course's requisite groups against one
// student's record. It is pure: identical inputs always produce
// identical results.
type RequisiteService struct {
	logger *zap.Logger
}

// NewRequisiteService constructs the evaluator.
func NewRequisiteService(logger *zap.Logger) *RequisiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequisiteService{logger: logger}
}

// CompileGroups lowers a course's requisite groups into tagged
// expressions, resolving loose patterns against the catalog snapshot.
// Unresolvable members are dropped with a warning; a group left with no
// terms is marked vacuous.
func (s *RequisiteService) CompileGroups(g *models.CatalogGraph, courseID string) ([]models.ReqExpr, []string) {
	groups := g.Groups[courseID]
	exprs := make([]models.ReqExpr, 0, len(groups))
	var warnings []string

	for _, group := range groups {
		expr := models.ReqExpr{
			GroupID: group.ID,
			Kind:    group.Kind,
			Op:      models.ExprAllOf,
		}
		if group.Logic == models.LogicMinCount {
			expr.Op = models.ExprAtLeast
			expr.N = group.MinCount
		}
		for _, member := range group.Members {
			term, ok := resolveMember(g, member)
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"requisite group %s: member %s does not match any catalog course",
					group.ID, models.CourseCode(member.Subject, member.CatalogNumber)))
				continue
			}
			expr.Terms = append(expr.Terms, term)
		}
		if len(expr.Terms) == 0 {
			expr.Vacuous = true
			warnings = append(warnings, fmt.Sprintf(
				"requisite group %s on course %s has no qualifying members and is vacuously satisfied",
				group.ID, g.Courses[courseID].Code()))
		}
		if expr.Op == models.ExprAtLeast && expr.N > len(expr.Terms) && !expr.Vacuous {
			warnings = append(warnings, fmt.Sprintf(
				"requisite group %s requires %d of %d resolvable members",
				group.ID, expr.N, len(expr.Terms)))
		}
		exprs = append(exprs, expr)
	}
	return exprs, warnings
}

// Evaluate decides whether the student may attempt the course. The
// concurrent set holds course IDs planned in the same term, consulted
// only for co-requisite members flagged concurrent_ok.
func (s *RequisiteService) Evaluate(g *models.CatalogGraph, course models.Course, st StudentState, concurrent map[string]bool) models.RequisiteResult {
	exprs, warnings := s.CompileGroups(g, course.ID)

	result := models.RequisiteResult{
		CourseID: course.ID,
		Code:     course.Code(),
		Status:   models.RequisiteSatisfied,
		Warnings: warnings,
	}

	antiViolated := false
	prime := true

	for _, expr := range exprs {
		switch expr.Kind {
		case models.RequisiteAnti:
			// Anti groups invert: the group "passing" makes the course
			// ineligible. Only earned credit counts, never planned work.
			if !expr.Vacuous && groupMet(expr, st, nil) {
				antiViolated = true
				for _, term := range expr.Terms {
					if _, ok := st.CompletionFor(term.CourseID); ok {
						result.UnmetMembers = append(result.UnmetMembers, models.UnmetMember{
							GroupID:  expr.GroupID,
							Kind:     models.RequisiteAnti,
							CourseID: term.CourseID,
							Code:     term.Code,
							Reason:   "credit already earned for anti-requisite",
						})
					}
				}
			}
		case models.RequisitePre, models.RequisiteCo:
			if expr.Vacuous {
				continue
			}
			var conc map[string]bool
			if expr.Kind == models.RequisiteCo {
				conc = concurrent
			}
			if !groupMet(expr, st, conc) {
				prime = false
				result.UnmetMembers = append(result.UnmetMembers, unmetTerms(expr, st, conc)...)
			}
		}
	}

	switch {
	case antiViolated:
		result.Status = models.RequisiteUnsatisfied
	case prime:
		result.Status = models.RequisiteSatisfied
	case st.CourseWaived(course.ID):
		result.Status = models.RequisiteSatisfiedWithWaiver
	default:
		result.Status = models.RequisiteUnsatisfied
	}
	return result
}

func resolveMember(g *models.CatalogGraph, member models.RequisiteGroupMember) (models.ReqTerm, bool) {
	var course models.Course
	if member.CourseID != nil && *member.CourseID != "" {
		c, ok := g.Courses[*member.CourseID]
		if !ok {
			return models.ReqTerm{}, false
		}
		course = c
	} else {
		c, ok := g.ResolveCode(member.Subject, member.CatalogNumber)
		if !ok {
			return models.ReqTerm{}, false
		}
		course = c
	}
	return models.ReqTerm{
		CourseID:     course.ID,
		Code:         course.Code(),
		ConcurrentOK: member.ConcurrentOK,
		MinGradePts:  member.MinGradePts,
	}, true
}

// termMet checks one resolved term. The concurrent set is nil except for
// co-requisite evaluation.
func termMet(term models.ReqTerm, st StudentState, concurrent map[string]bool) bool {
	if completion, ok := st.CompletionFor(term.CourseID); ok {
		if term.MinGradePts == nil || completion.GradePoints >= *term.MinGradePts {
			return true
		}
	}
	if term.ConcurrentOK && concurrent != nil && concurrent[term.CourseID] {
		return true
	}
	return false
}

func groupMet(expr models.ReqExpr, st StudentState, concurrent map[string]bool) bool {
	met := 0
	for _, term := range expr.Terms {
		if termMet(term, st, concurrent) {
			met++
		}
	}
	if expr.Op == models.ExprAtLeast {
		return met >= expr.N
	}
	return met == len(expr.Terms)
}

func unmetTerms(expr models.ReqExpr, st StudentState, concurrent map[string]bool) []models.UnmetMember {
	var unmet []models.UnmetMember
	reason := "not completed"
	if expr.Op == models.ExprAtLeast {
		reason = fmt.Sprintf("at least %d of the group required", expr.N)
	}
	for _, term := range expr.Terms {
		if termMet(term, st, concurrent) {
			continue
		}
		r := reason
		if completion, ok := st.CompletionFor(term.CourseID); ok && term.MinGradePts != nil && completion.GradePoints < *term.MinGradePts {
			r = fmt.Sprintf("grade %.1f below required %.1f", completion.GradePoints, *term.MinGradePts)
		}
		unmet = append(unmet, models.UnmetMember{
			GroupID:  expr.GroupID,
			Kind:     expr.Kind,
			CourseID: term.CourseID,
			Code:     term.Code,
			Reason:   r,
		})
	}
	sort.SliceStable(unmet, func(i, j int) bool { return unmet[i].Code < unmet[j].Code })
	return unmet
}
