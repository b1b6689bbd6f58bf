package models

import "time"

// UnlockEdge is a derived fact: completing From is a direct prerequisite
// component enabling To. Edges are rebuilt from the catalog, never
// hand-maintained.
type UnlockEdge struct {
	FromCourseID string `json:"from_course_id"`
	ToCourseID   string `json:"to_course_id"`
}

// GraphWarning records a non-fatal resolution problem found while
// building the catalog graph.
type GraphWarning struct {
	CourseID string `json:"course_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// CourseUnlocks holds the derived unlock counters for one course.
type CourseUnlocks struct {
	CourseID   string `json:"course_id"`
	Code       string `json:"code"`
	Direct     int    `json:"direct"`
	Downstream int    `json:"downstream"`
}

// CatalogGraph is an immutable snapshot of the course unlock graph and
// its transitive reachability. A snapshot is built whole and swapped
// atomically; concurrent audits only ever read it.
type CatalogGraph struct {
	BuiltAt time.Time `json:"built_at"`

	// Courses indexes every catalog course by ID.
	Courses map[string]Course `json:"courses"`
	// CodeIndex maps "SUBJ 1234" display codes to course IDs.
	CodeIndex map[string]string `json:"code_index"`
	// Groups holds each course's requisite groups with members, keyed
	// by course ID, in declared order.
	Groups map[string][]RequisiteGroup `json:"groups"`
	// Adjacency maps a course to the courses it directly unlocks.
	Adjacency map[string][]string `json:"adjacency"`
	// Reachable maps a course to every transitively unlocked course
	// with its shortest distance (always >= 1; self distance is absent).
	Reachable map[string]map[string]int `json:"reachable"`
	// Warnings collects unresolved member patterns and other non-fatal
	// findings from the build.
	Warnings []GraphWarning `json:"warnings,omitempty"`
}

// ResolveCode returns the course for a display code when present.
func (g *CatalogGraph) ResolveCode(subject, catalogNumber string) (Course, bool) {
	id, ok := g.CodeIndex[CourseCode(subject, catalogNumber)]
	if !ok {
		return Course{}, false
	}
	course, ok := g.Courses[id]
	return course, ok
}

// Unlocks returns the derived unlock counters for a course.
func (g *CatalogGraph) Unlocks(courseID string) CourseUnlocks {
	course := g.Courses[courseID]
	return CourseUnlocks{
		CourseID:   courseID,
		Code:       course.Code(),
		Direct:     len(g.Adjacency[courseID]),
		Downstream: len(g.Reachable[courseID]),
	}
}
