package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/medq/medq/pkg/models"
)

type PatientService struct {
	c *Client
}

// Create submits a finished intake.
func (s *PatientService) Create(ctx context.Context, p models.PatientCreate) (*models.Patient, error) {
	var out models.Patient
	if err := s.c.do(ctx, request{method: http.MethodPost, path: "/api/patients", body: p}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns patients newest first. Zero limit uses the server default.
func (s *PatientService) List(ctx context.Context, skip, limit int) ([]models.Patient, error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.Patient
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/patients", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PatientService) Get(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var out models.Patient
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/patients/" + id.String()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary returns the most recent summary stored for the patient.
func (s *PatientService) Summary(ctx context.Context, id uuid.UUID) (*models.MedicalSummary, error) {
	var out models.MedicalSummary
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/patients/" + id.String() + "/summary"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportPDF streams the patient's PDF report to w.
func (s *PatientService) ExportPDF(ctx context.Context, id uuid.UUID, w io.Writer) (int64, error) {
	return s.c.download(ctx, request{method: http.MethodGet, path: "/api/export/pdf/" + id.String()}, w)
}
