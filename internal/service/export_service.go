package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
	"github.com/noah-isme/degree-audit-api/pkg/export"
	"github.com/noah-isme/degree-audit-api/pkg/storage"
)

type auditReader interface {
	GetRun(ctx context.Context, runID string) (*models.AuditRun, error)
}

// ExportFormat selects the rendered artifact type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult carries a signed download token for a rendered report.
type ExportResult struct {
	RunID     string    `json:"run_id"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders persisted audit runs into downloadable reports.
// The rendered rows mirror the per-block progress table: one row per
// requirement block with credits required, applied and still needed.
type ExportService struct {
	audits  auditReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewExportService constructs the exporter.
func NewExportService(audits auditReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		audits:  audits,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: store,
		signer:  signer,
		logger:  logger,
	}
}

var exportHeaders = []string{"Program", "Requirement", "Status", "Credits Required", "Credits Applied", "Credits Needed", "Courses Required", "Courses Applied", "Courses Needed"}

// Export renders one audit run and returns a signed, expiring download
// token. Aborted runs carry no evaluation body and cannot be exported.
func (s *ExportService) Export(ctx context.Context, runID string, format ExportFormat) (*ExportResult, error) {
	run, err := s.audits.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == models.AuditAborted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "aborted audit runs have no report")
	}

	dataset := buildAuditDataset(run)

	var payload []byte
	switch format {
	case ExportCSV:
		payload, err = s.csv.Render(dataset)
	case ExportPDF:
		subtitle := fmt.Sprintf("Student %s · Run %s · %s", run.StudentID, run.ID, run.CreatedAt.Format("2006-01-02"))
		payload, err = s.pdf.Render(dataset, "Degree Audit Report", subtitle)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	relPath := fmt.Sprintf("%s/audit-%s.%s", run.StudentID, run.ID, format)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(run.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	s.logger.Sugar().Infow("audit report exported",
		"run_id", run.ID,
		"student_id", run.StudentID,
		"format", format,
		"path", relPath)

	return &ExportResult{RunID: run.ID, Format: string(format), Token: token, ExpiresAt: expiresAt}, nil
}

// Download validates a signed token and opens the stored report.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}
	parts := strings.Split(relPath, "/")
	return file, parts[len(parts)-1], nil
}

// Cleanup removes reports older than the TTL. Meant to run on a ticker
// from main.
func (s *ExportService) Cleanup(ttl time.Duration) {
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "error", err)
		return
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired reports removed", "count", len(deleted))
	}
}

func buildAuditDataset(run *models.AuditRun) export.Dataset {
	dataset := export.Dataset{Headers: exportHeaders}
	for _, program := range run.Summary.Programs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Program":     program.Name,
			"Requirement": "(overall)",
			"Status":      string(program.Status),
		})
		for _, block := range program.Blocks {
			appendBlockRows(&dataset, program.Name, block, 0)
		}
	}
	return dataset
}

func appendBlockRows(dataset *export.Dataset, programName string, block models.BlockResult, depth int) {
	indent := strings.Repeat("  ", depth)
	dataset.Rows = append(dataset.Rows, map[string]string{
		"Program":          programName,
		"Requirement":      indent + block.Title,
		"Status":           string(block.Status),
		"Credits Required": formatCredits(block.CreditsRequired),
		"Credits Applied":  formatCredits(block.CreditsApplied),
		"Credits Needed":   formatCredits(block.CreditsNeeded),
		"Courses Required": formatCount(block.CoursesRequired),
		"Courses Applied":  formatCount(block.CoursesApplied),
		"Courses Needed":   formatCount(block.CoursesNeeded),
	})
	for _, child := range block.Children {
		appendBlockRows(dataset, programName, child, depth+1)
	}
}

func formatCredits(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCount(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
