package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/medq/medq/pkg/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	List(ctx context.Context, limit, offset int) ([]*models.Patient, error)
}

type SummaryRepository interface {
	Create(ctx context.Context, s *models.MedicalSummary) error
	// Latest returns the most recent summary for the patient.
	Latest(ctx context.Context, patientID uuid.UUID) (*models.MedicalSummary, error)
}

// EventPublisher announces stored intakes.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.IntakeEvent) error
}
