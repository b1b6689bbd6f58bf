package models

import "time"

// ProgramKind distinguishes declarable program types.
type ProgramKind string

const (
	ProgramMajor       ProgramKind = "major"
	ProgramMinor       ProgramKind = "minor"
	ProgramCertificate ProgramKind = "certificate"
)

// Program is a major/minor/certificate for one catalog year. It owns a
// tree of requirement blocks rooted at the blocks with no parent.
type Program struct {
	ID          string              `db:"id" json:"id"`
	Code        string              `db:"code" json:"code"`
	Name        string              `db:"name" json:"name"`
	Kind        ProgramKind         `db:"kind" json:"kind"`
	CatalogYear string              `db:"catalog_year" json:"catalog_year"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	Blocks      []*RequirementBlock `json:"blocks,omitempty"`
}

// BlockRuleKind is the closed set of rule variants a block may declare.
// Leaf blocks use threshold rules over their course-match set; non-leaf
// blocks gate on their children.
type BlockRuleKind string

const (
	// RuleThreshold compares completions in the match set against
	// required credits and/or required courses.
	RuleThreshold BlockRuleKind = "threshold"
	// RuleAllOf requires every child block satisfied.
	RuleAllOf BlockRuleKind = "all_of"
	// RuleAnyOf requires at least one child block satisfied.
	RuleAnyOf BlockRuleKind = "any_of"
	// RuleMinCount requires at least MinCount children satisfied.
	RuleMinCount BlockRuleKind = "min_count"
)

// BlockRule is the satisfaction rule carried by one requirement block.
// Threshold rules may declare either or both limits; child-gating rules
// ignore them except for reporting roll-ups.
type BlockRule struct {
	Kind            BlockRuleKind `db:"rule_kind" json:"kind"`
	RequiredCredits *float64      `db:"required_credits" json:"required_credits,omitempty"`
	RequiredCourses *int          `db:"required_courses" json:"required_courses,omitempty"`
	MinCount        int           `db:"rule_min_count" json:"min_count,omitempty"`
}

// RequirementBlock is one node of a program's requirement tree. A rule
// references only the block's own children or its own match set, so the
// tree always evaluates bottom-up without cycles.
type RequirementBlock struct {
	ID        string              `db:"id" json:"id"`
	ProgramID string              `db:"program_id" json:"program_id"`
	ParentID  *string             `db:"parent_id" json:"parent_id,omitempty"`
	Title     string              `db:"title" json:"title"`
	Position  int                 `db:"position" json:"position"`
	Rule      BlockRule           `json:"rule"`
	Matches   []BlockCourseMatch  `json:"matches,omitempty"`
	Children  []*RequirementBlock `json:"children,omitempty"`
}

// Leaf reports whether the block gates on its match set rather than
// child blocks.
func (b *RequirementBlock) Leaf() bool {
	return len(b.Children) == 0
}

// BlockCourseMatch references one course eligible to satisfy a leaf
// block, either concretely or by (subject, catalog number) pattern.
type BlockCourseMatch struct {
	ID            string   `db:"id" json:"id"`
	BlockID       string   `db:"block_id" json:"block_id"`
	CourseID      *string  `db:"course_id" json:"course_id,omitempty"`
	Subject       string   `db:"subject" json:"subject,omitempty"`
	CatalogNumber string   `db:"catalog_number" json:"catalog_number,omitempty"`
	MinGradePts   *float64 `db:"min_grade_points" json:"min_grade_points,omitempty"`
}

// BlockStatus is the satisfaction state of one requirement block.
type BlockStatus string

const (
	BlockUnsatisfied        BlockStatus = "unsatisfied"
	BlockPartiallySatisfied BlockStatus = "partially_satisfied"
	BlockSatisfied          BlockStatus = "satisfied"
	BlockSatisfiedByWaiver  BlockStatus = "satisfied_by_waiver"
)

// Met reports whether the status counts as satisfied for parent gating.
func (s BlockStatus) Met() bool {
	return s == BlockSatisfied || s == BlockSatisfiedByWaiver
}

// BlockResult is the evaluated state of one block, including the gap
// numbers the recommendation scorer consumes.
type BlockResult struct {
	BlockID         string        `json:"block_id"`
	Title           string        `json:"title"`
	Status          BlockStatus   `json:"status"`
	CreditsRequired float64       `json:"credits_required"`
	CreditsApplied  float64       `json:"credits_applied"`
	CreditsNeeded   float64       `json:"credits_needed"`
	CoursesRequired int           `json:"courses_required"`
	CoursesApplied  int           `json:"courses_applied"`
	CoursesNeeded   int           `json:"courses_needed"`
	UnmetMatches    []UnmetMatch  `json:"unmet_matches,omitempty"`
	Children        []BlockResult `json:"children,omitempty"`
}

// UnmetMatch names a course that would still count toward an unmet leaf
// block.
type UnmetMatch struct {
	BlockID    string  `json:"block_id"`
	BlockTitle string  `json:"block_title"`
	CourseID   string  `json:"course_id"`
	Code       string  `json:"code"`
	Credits    float64 `json:"credits"`
}
