package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/pkg/models"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func expectHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
	return httpErr
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Ana","age":29,"gender":"female","symptoms":"cough","duration":"3 days","allergies":"none"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var env models.Envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Message != "Patient created successfully" {
		t.Errorf("unexpected message %q", env.Message)
	}
}

func TestHandler_CreatePatient_Invalid(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	expectHTTPError(t, h.CreatePatient(c), http.StatusUnprocessableEntity)
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	for i := 0; i < 3; i++ {
		h.svc.Create(context.Background(), validPatient())
	}

	req := httptest.NewRequest(http.MethodGet, "/?skip=1&limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []models.Patient
	env := models.Envelope{Data: &items}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if len(items) != 1 || env.Message != "Retrieved 1 patients" {
		t.Errorf("unexpected list %d %q", len(items), env.Message)
	}
}

func TestHandler_ListPatients_BadLimit(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=5000", nil), httptest.NewRecorder())
	expectHTTPError(t, h.ListPatients(c), http.StatusUnprocessableEntity)
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	p, _ := h.svc.Create(context.Background(), validPatient())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	httpErr := expectHTTPError(t, h.GetPatient(c), http.StatusNotFound)
	if httpErr.Message != "Patient not found" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestHandler_GetPatient_BadID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPError(t, h.GetPatient(c), http.StatusBadRequest)
}

func TestHandler_Summary_RoundTrip(t *testing.T) {
	h, e := newTestHandler()
	p, _ := h.svc.Create(context.Background(), validPatient())

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	httpErr := expectHTTPError(t, h.GetSummary(c), http.StatusNotFound)
	if httpErr.Message != "No summary found for this patient" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}

	body := `{"summary_text":"Patient reports headache","structured_data":{"chief_complaint":"headache","severity":"mild"}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.SaveSummary(c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetSummary(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	var ms models.MedicalSummary
	json.Unmarshal(rec.Body.Bytes(), &models.Envelope{Data: &ms})
	if ms.SummaryText != "Patient reports headache" {
		t.Errorf("unexpected summary %q", ms.SummaryText)
	}
}

func TestHandler_ExportPDF(t *testing.T) {
	h, e := newTestHandler()
	p, _ := h.svc.Create(context.Background(), validPatient())
	h.svc.SaveSummary(context.Background(), p.ID, "Line one\nLine two", models.StructuredData{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.ExportPDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	want := "attachment; filename=patient_" + p.ID.String() + "_summary.pdf"
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != want {
		t.Errorf("unexpected disposition %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected a PDF body")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 100)
	if got := truncate(long, pdfLineWidth); len(got) != pdfLineWidth {
		t.Errorf("expected %d chars, got %d", pdfLineWidth, len(got))
	}
	if got := truncate("short", pdfLineWidth); got != "short" {
		t.Errorf("unexpected %q", got)
	}
}

func TestHandler_RoutesRequireDoctorRole(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))
	p, err := h.svc.Create(context.Background(), validPatient())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		roles  []string
		want   int
	}{
		{"submission without role", http.MethodPost, "/api/patients", `{"name":"Ana","age":29,"gender":"female","symptoms":"cough","duration":"3 days"}`, nil, http.StatusOK},
		{"list without role", http.MethodGet, "/api/patients", "", nil, http.StatusForbidden},
		{"list as patient", http.MethodGet, "/api/patients", "", []string{"patient"}, http.StatusForbidden},
		{"list as doctor", http.MethodGet, "/api/patients", "", []string{"doctor"}, http.StatusOK},
		{"get as admin", http.MethodGet, "/api/patients/" + p.ID.String(), "", []string{"admin"}, http.StatusOK},
		{"summary without role", http.MethodGet, "/api/patients/" + p.ID.String() + "/summary", "", nil, http.StatusForbidden},
		{"export without role", http.MethodGet, "/api/export/pdf/" + p.ID.String(), "", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.roles != nil {
				req = req.WithContext(context.WithValue(req.Context(), auth.UserRolesKey, tt.roles))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d (%s)", tt.method, tt.path, tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
