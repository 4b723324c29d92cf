package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/pkg/models"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, age, gender, symptoms, duration, allergies, medications, created_at, updated_at`

func scanPatient(row pgx.Row) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Symptoms, &p.Duration,
		&p.Allergies, &p.Medications, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *models.Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, age, gender, symptoms, duration, allergies, medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Symptoms, p.Duration, p.Allergies, p.Medications,
	).Scan(&p.CreatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err)
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*models.Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*models.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Summary Repository ===========

type summaryRepoPG struct{ pool *pgxpool.Pool }

func NewSummaryRepoPG(pool *pgxpool.Pool) SummaryRepository { return &summaryRepoPG{pool: pool} }

func (r *summaryRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *summaryRepoPG) Create(ctx context.Context, s *models.MedicalSummary) error {
	s.ID = uuid.New()
	structured, err := json.Marshal(s.StructuredData)
	if err != nil {
		return fmt.Errorf("encode structured data: %w", err)
	}
	codes, err := json.Marshal(s.ICDCodes)
	if err != nil {
		return fmt.Errorf("encode icd codes: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO summaries (id, patient_id, summary_text, structured_data, icd_codes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		s.ID, s.PatientID, s.SummaryText, structured, codes,
	).Scan(&s.CreatedAt)
}

func (r *summaryRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*models.MedicalSummary, error) {
	var (
		s                 models.MedicalSummary
		structured, codes []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, summary_text, structured_data, icd_codes, created_at
		FROM summaries WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT 1`, patientID,
	).Scan(&s.ID, &s.PatientID, &s.SummaryText, &structured, &codes, &s.CreatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	if len(structured) > 0 {
		if err := json.Unmarshal(structured, &s.StructuredData); err != nil {
			return nil, fmt.Errorf("decode structured data: %w", err)
		}
	}
	if len(codes) > 0 {
		if err := json.Unmarshal(codes, &s.ICDCodes); err != nil {
			return nil, fmt.Errorf("decode icd codes: %w", err)
		}
	}
	return &s, nil
}
