package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/degree-audit-api/internal/models"
	appErrors "github.com/noah-isme/degree-audit-api/pkg/errors"
)

type preferencesStore interface {
	GetPreferences(ctx context.Context, studentID string) (*models.Preferences, error)
	UpsertPreferences(ctx context.Context, prefs *models.Preferences) error
}

// UpdatePreferencesRequest carries the per-student scoring knobs.
type UpdatePreferencesRequest struct {
	MinCredits float64 `json:"min_credits" validate:"gte=0,lte=30"`
	MaxCredits float64 `json:"max_credits" validate:"gte=0,lte=30"`
	TimeOfDay  string  `json:"time_of_day" validate:"omitempty,oneof=morning afternoon evening"`
}

// StudentService manages the student-owned inputs to the scorer.
type StudentService struct {
	prefs     preferencesStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(prefs preferencesStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{prefs: prefs, validator: validate, logger: logger}
}

// GetPreferences returns a student's preferences; missing rows come back
// as zero values so the scorer falls through to configured defaults.
func (s *StudentService) GetPreferences(ctx context.Context, studentID string) (*models.Preferences, error) {
	prefs, err := s.prefs.GetPreferences(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.Preferences{StudentID: studentID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return prefs, nil
}

// UpdatePreferences validates and stores a student's scoring knobs.
func (s *StudentService) UpdatePreferences(ctx context.Context, studentID string, req UpdatePreferencesRequest) (*models.Preferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}
	if req.MinCredits > req.MaxCredits && req.MaxCredits > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "min_credits must not exceed max_credits")
	}
	prefs := &models.Preferences{
		StudentID:  studentID,
		MinCredits: req.MinCredits,
		MaxCredits: req.MaxCredits,
		TimeOfDay:  req.TimeOfDay,
	}
	if err := s.prefs.UpsertPreferences(ctx, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preferences")
	}
	return prefs, nil
}
