package models

import "time"

// Completion is one earned course in a student's record, internal or
// transfer. Verified rows are immutable history; the table is
// append-only.
type Completion struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CourseID    *string   `db:"course_id" json:"course_id,omitempty"`
	Subject     string    `db:"subject" json:"subject"`
	CatalogNum  string    `db:"catalog_number" json:"catalog_number"`
	Credits     float64   `db:"credits" json:"credits"`
	Grade       string    `db:"grade" json:"grade"`
	GradePoints float64   `db:"grade_points" json:"grade_points"`
	External    bool      `db:"external" json:"external"`
	Verified    bool      `db:"verified" json:"verified"`
	TermTaken   string    `db:"term_taken" json:"term_taken"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// WaiverKind identifies what a waiver overrides.
type WaiverKind string

const (
	// WaiverBlock satisfies an entire requirement block.
	WaiverBlock WaiverKind = "block"
	// WaiverCourse satisfies a specific required course.
	WaiverCourse WaiverKind = "course"
	// WaiverSubstitute lets one course stand in for another.
	WaiverSubstitute WaiverKind = "substitute"
)

// Waiver is an advisor override participating in rule evaluation as an
// alternate satisfaction path.
type Waiver struct {
	ID                 string     `db:"id" json:"id"`
	StudentID          string     `db:"student_id" json:"student_id"`
	Kind               WaiverKind `db:"kind" json:"kind"`
	BlockID            *string    `db:"block_id" json:"block_id,omitempty"`
	RequiredCourseID   *string    `db:"required_course_id" json:"required_course_id,omitempty"`
	SubstituteCourseID *string    `db:"substitute_course_id" json:"substitute_course_id,omitempty"`
	Reason             string     `db:"reason" json:"reason"`
	ApprovedBy         string     `db:"approved_by" json:"approved_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Plan is a student's hypothetical future schedule. The audit consumes
// it read-only.
type Plan struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Name      string     `db:"name" json:"name"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Terms     []PlanTerm `json:"terms,omitempty"`
}

// PlanTerm is one ordered future term in a plan. Position 0 is the
// student's next (current planning) term.
type PlanTerm struct {
	ID       string     `db:"id" json:"id"`
	PlanID   string     `db:"plan_id" json:"plan_id"`
	Position int        `db:"position" json:"position"`
	Season   TermSeason `db:"season" json:"season"`
	Year     int        `db:"year" json:"year"`
	Items    []PlanItem `json:"items,omitempty"`
}

// PlanItem pins a course into a plan term; backups do not count as
// pinned for recommendation exclusion.
type PlanItem struct {
	ID       string `db:"id" json:"id"`
	TermID   string `db:"plan_term_id" json:"plan_term_id"`
	CourseID string `db:"course_id" json:"course_id"`
	Backup   bool   `db:"backup" json:"backup"`
	Position int    `db:"position" json:"position"`
}

// Preferences carries the per-student knobs the scorer consumes but
// never computes.
type Preferences struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	MinCredits float64   `db:"min_credits" json:"min_credits"`
	MaxCredits float64   `db:"max_credits" json:"max_credits"`
	TimeOfDay  string    `db:"time_of_day" json:"time_of_day,omitempty"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentProgram links a student to a declared program.
type StudentProgram struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	ProgramID  string    `db:"program_id" json:"program_id"`
	DeclaredAt time.Time `db:"declared_at" json:"declared_at"`
}
