package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/pkg/models"
)

// EventPatientCreated is the IntakeEvent type published for new submissions.
const EventPatientCreated = "patient.created"

var (
	// ErrInvalid wraps every validation failure of a patient submission.
	ErrInvalid   = errors.New("invalid patient")
	ErrNoSummary = errors.New("no summary found for this patient")
)

type Service struct {
	patients  Repository
	summaries SummaryRepository
	tx        db.Transactor
	events    EventPublisher
	logger    zerolog.Logger
}

func NewService(patients Repository, summaries SummaryRepository, tx db.Transactor, events EventPublisher, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{
		patients:  patients,
		summaries: summaries,
		tx:        tx,
		events:    events,
		logger:    logger.With().Str("component", "patient").Logger(),
	}
}

func validate(in models.PatientCreate) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case in.Age < 0 || in.Age > 150:
		return fmt.Errorf("%w: age must be between 0 and 150", ErrInvalid)
	case in.Gender == models.GenderUnset || !in.Gender.Valid():
		return fmt.Errorf("%w: gender must be male, female or other", ErrInvalid)
	case strings.TrimSpace(in.Symptoms) == "":
		return fmt.Errorf("%w: symptoms are required", ErrInvalid)
	case strings.TrimSpace(in.Duration) == "":
		return fmt.Errorf("%w: duration is required", ErrInvalid)
	}
	if in.Summary != nil {
		return validateSummary(in.Summary.SummaryText, in.Summary.StructuredData)
	}
	return nil
}

func validateSummary(text string, data models.StructuredData) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: summary_text is required", ErrInvalid)
	}
	if data.Severity != "" && !data.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalid, data.Severity)
	}
	return nil
}

// Create stores a completed intake, together with the summary the patient
// reviewed when one is attached, and announces it in the same transaction.
func (s *Service) Create(ctx context.Context, in models.PatientCreate) (*models.Patient, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	p := &models.Patient{
		Name:        strings.TrimSpace(in.Name),
		Age:         in.Age,
		Gender:      in.Gender,
		Symptoms:    in.Symptoms,
		Duration:    in.Duration,
		Allergies:   in.Allergies,
		Medications: in.Medications,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		if in.Summary != nil {
			ms := &models.MedicalSummary{
				PatientID:      p.ID,
				SummaryText:    in.Summary.SummaryText,
				StructuredData: in.Summary.StructuredData,
			}
			if err := s.summaries.Create(ctx, ms); err != nil {
				return fmt.Errorf("create summary: %w", err)
			}
		}
		if s.events == nil {
			return nil
		}
		return s.events.Publish(ctx, models.IntakeEvent{
			Type:      EventPatientCreated,
			PatientID: p.ID,
			Name:      p.Name,
			At:        time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient intake stored")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Patient, error) {
	return s.patients.List(ctx, limit, offset)
}

// SaveSummary stores a generated summary against an existing patient.
func (s *Service) SaveSummary(ctx context.Context, patientID uuid.UUID, text string, data models.StructuredData) (*models.MedicalSummary, error) {
	if err := validateSummary(text, data); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	ms := &models.MedicalSummary{PatientID: patientID, SummaryText: text, StructuredData: data}
	if err := s.summaries.Create(ctx, ms); err != nil {
		return nil, fmt.Errorf("create summary: %w", err)
	}
	return ms, nil
}

// LatestSummary returns the newest summary of an existing patient.
func (s *Service) LatestSummary(ctx context.Context, patientID uuid.UUID) (*models.MedicalSummary, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	ms, err := s.summaries.Latest(ctx, patientID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoSummary
	}
	return ms, err
}

// Report loads a patient with its latest summary, if any, for export.
func (s *Service) Report(ctx context.Context, patientID uuid.UUID) (*models.Patient, *models.MedicalSummary, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	ms, err := s.summaries.Latest(ctx, patientID)
	if errors.Is(err, db.ErrNotFound) {
		return p, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return p, ms, nil
}
