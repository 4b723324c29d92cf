package analytics

import (
	"context"
	"time"

	"github.com/medq/medq/pkg/models"
)

// SymptomRecord is the symptom text of one submission and when it arrived.
type SymptomRecord struct {
	Symptoms  string
	CreatedAt time.Time
}

type Repository interface {
	// CountPatients counts submissions created in [from, to). Zero bounds are open.
	CountPatients(ctx context.Context, from, to time.Time) (int, error)
	// DailyCounts returns submissions per UTC day (YYYY-MM-DD) since from.
	DailyCounts(ctx context.Context, from time.Time) (map[string]int, error)
	// Symptoms returns the symptom text of every submission since from.
	Symptoms(ctx context.Context, from time.Time) ([]SymptomRecord, error)
	// Patients returns submissions created in [from, to) in creation order.
	Patients(ctx context.Context, from, to time.Time) ([]*models.Patient, error)
}
