package models

import "time"

// AuditStatus is the terminal state of one audit run.
type AuditStatus string

const (
	AuditComplete             AuditStatus = "complete"
	AuditCompleteWithWarnings AuditStatus = "complete_with_warnings"
	AuditAborted              AuditStatus = "aborted"
)

// ProgramResult is the evaluated requirement tree of one declared
// program.
type ProgramResult struct {
	ProgramID string        `json:"program_id"`
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	Status    BlockStatus   `json:"status"`
	Blocks    []BlockResult `json:"blocks"`
}

// CourseEligibility is the requisite outcome for one catalog course.
type CourseEligibility struct {
	CourseID     string          `json:"course_id"`
	Code         string          `json:"code"`
	Status       RequisiteStatus `json:"status"`
	UnmetMembers []UnmetMember   `json:"unmet_members,omitempty"`
}

// Eligible reports whether the student may attempt the course.
func (e CourseEligibility) Eligible() bool {
	return e.Status == RequisiteSatisfied || e.Status == RequisiteSatisfiedWithWaiver
}

// AuditSummary is the structured body persisted with a run.
type AuditSummary struct {
	Programs    []ProgramResult     `json:"programs"`
	Eligibility []CourseEligibility `json:"eligibility"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// AuditRun is one immutable evaluation snapshot for one student and
// optional plan. Runs are an append-only log keyed by (student,
// created_at); they are never updated in place.
type AuditRun struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	PlanID      *string      `db:"plan_id" json:"plan_id,omitempty"`
	Status      AuditStatus  `db:"status" json:"status"`
	AbortReason string       `db:"abort_reason" json:"abort_reason,omitempty"`
	Summary     AuditSummary `json:"summary"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Recommendation is one ranked course suggestion tied to an audit run.
// The list for a run is written once and replaced wholesale by the next
// run, never patched.
type Recommendation struct {
	ID          string   `db:"id" json:"id"`
	AuditRunID  string   `db:"audit_run_id" json:"audit_run_id"`
	CourseID    string   `db:"course_id" json:"course_id"`
	Code        string   `db:"code" json:"code"`
	Rank        int      `db:"rank" json:"rank"`
	Score       float64  `db:"score" json:"score"`
	UnlockCount int      `db:"unlock_count" json:"unlock_count"`
	GapRelief   float64  `db:"gap_relief" json:"gap_relief"`
	Rationale   []string `json:"rationale"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}
