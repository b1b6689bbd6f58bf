package models

// RequisiteKind distinguishes the three requisite relations a course can
// declare.
type RequisiteKind string

const (
	// RequisitePre must be completed before attempting the course.
	RequisitePre RequisiteKind = "pre"
	// RequisiteCo may be completed before or concurrently with the course.
	RequisiteCo RequisiteKind = "co"
	// RequisiteAnti makes the course ineligible once its members are earned.
	RequisiteAnti RequisiteKind = "anti"
)

// RequisiteLogic is the combination mode within one group. Groups on the
// same course always combine by AND; members combine per this mode.
type RequisiteLogic string

const (
	// LogicAll requires every member of the group.
	LogicAll RequisiteLogic = "all"
	// LogicMinCount requires at least MinCount members.
	LogicMinCount RequisiteLogic = "min_count"
)

// RequisiteGroup is one logical unit of requisites attached to a course.
type RequisiteGroup struct {
	ID       string                 `db:"id" json:"id"`
	CourseID string                 `db:"course_id" json:"course_id"`
	Kind     RequisiteKind          `db:"kind" json:"kind"`
	Logic    RequisiteLogic         `db:"logic" json:"logic"`
	MinCount int                    `db:"min_count" json:"min_count"`
	Position int                    `db:"position" json:"position"`
	Members  []RequisiteGroupMember `json:"members,omitempty"`
}

// RequisiteGroupMember references either a concrete course (CourseID set)
// or a loose (subject, catalog number) pattern resolved against the
// catalog at evaluation time.
type RequisiteGroupMember struct {
	ID            string   `db:"id" json:"id"`
	GroupID       string   `db:"group_id" json:"group_id"`
	CourseID      *string  `db:"course_id" json:"course_id,omitempty"`
	Subject       string   `db:"subject" json:"subject,omitempty"`
	CatalogNumber string   `db:"catalog_number" json:"catalog_number,omitempty"`
	ConcurrentOK  bool     `db:"concurrent_ok" json:"concurrent_ok"`
	MinGradePts   *float64 `db:"min_grade_points" json:"min_grade_points,omitempty"`
	Position      int      `db:"position" json:"position"`
}

// ReqExprOp tags the two expression shapes the group/member design maps
// onto: AND of all terms, or at-least-n of the terms.
type ReqExprOp string

const (
	ExprAllOf   ReqExprOp = "all_of"
	ExprAtLeast ReqExprOp = "at_least"
)

// ReqExpr is one requisite group compiled against the catalog: patterns
// resolved to concrete course identities, logic lifted into a tagged
// expression instead of raw flags.
type ReqExpr struct {
	GroupID string        `json:"group_id"`
	Kind    RequisiteKind `json:"kind"`
	Op      ReqExprOp     `json:"op"`
	N       int           `json:"n,omitempty"`
	Terms   []ReqTerm     `json:"terms"`
	// Vacuous is set when pattern resolution left no qualifying terms;
	// such groups are treated as satisfied and surfaced as warnings.
	Vacuous bool `json:"vacuous,omitempty"`
}

// ReqTerm is one resolved member of a compiled requisite expression.
type ReqTerm struct {
	CourseID     string   `json:"course_id"`
	Code         string   `json:"code"`
	ConcurrentOK bool     `json:"concurrent_ok"`
	MinGradePts  *float64 `json:"min_grade_points,omitempty"`
}

// RequisiteStatus is the outcome of evaluating all requisite groups of
// one course for one student.
type RequisiteStatus string

const (
	RequisiteSatisfied           RequisiteStatus = "satisfied"
	RequisiteUnsatisfied         RequisiteStatus = "unsatisfied"
	RequisiteSatisfiedWithWaiver RequisiteStatus = "satisfied_with_waiver"
)

// UnmetMember describes a requisite term the student has not met, for
// diagnostics and recommendation rationales.
type UnmetMember struct {
	GroupID  string        `json:"group_id"`
	Kind     RequisiteKind `json:"kind"`
	CourseID string        `json:"course_id"`
	Code     string        `json:"code"`
	Reason   string        `json:"reason"`
}

// RequisiteResult reports eligibility of one course for one student.
type RequisiteResult struct {
	CourseID     string          `json:"course_id"`
	Code         string          `json:"code"`
	Status       RequisiteStatus `json:"status"`
	UnmetMembers []UnmetMember   `json:"unmet_members,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// Eligible reports whether the result allows attempting the course.
func (r RequisiteResult) Eligible() bool {
	return r.Status == RequisiteSatisfied || r.Status == RequisiteSatisfiedWithWaiver
}
