package dto

import "time"

// QueuedAuditResponse acknowledges an asynchronous audit request.
type QueuedAuditResponse struct {
	JobID     string `json:"job_id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// ExportRequest selects the report format for one audit run.
type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse carries the signed download link material.
type ExportResponse struct {
	RunID     string    `json:"run_id"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GraphStatusResponse summarises the active catalog graph snapshot.
type GraphStatusResponse struct {
	BuiltAt  time.Time `json:"built_at"`
	Courses  int       `json:"courses"`
	Warnings int       `json:"warnings"`
}
