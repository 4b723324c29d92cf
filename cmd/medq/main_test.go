package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/medq/medq/pkg/models"
)

func runCLI(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	tokenFile := filepath.Join(t.TempDir(), "token")
	cmd := newRootCmd(&app{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-url", srv.URL, "--token-file", tokenFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func ok(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(models.Envelope{Success: true, Data: data})
}

func TestCLI_AnalyticsExport(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte("Patient ID,Name\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "export.csv")
	out, err := runCLI(t, srv, "", "analytics", "export", "--start", "2025-07-01", "--end", "2025-07-31", "-o", dest)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(query, "start_date=2025-07-01") || !strings.Contains(query, "end_date=2025-07-31") {
		t.Errorf("unexpected query %q", query)
	}
	b, err := os.ReadFile(dest)
	if err != nil || !strings.HasPrefix(string(b), "Patient ID") {
		t.Errorf("expected csv on disk, got %q (%v)", b, err)
	}
}

func TestCLI_UnauthorizedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.Envelope{Error: "Unauthorized", Detail: "missing authorization header"})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "", "whoami")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "medq login") {
		t.Errorf("expected a login hint, got %q", out)
	}
}

func TestCLI_IntakeConversation(t *testing.T) {
	patientID := uuid.New()
	gender := models.GenderFemale
	var created models.PatientCreate

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/intake/text":
			ok(w, models.TextProcessResponse{
				Response: "Thank you.",
				ExtractedData: models.FieldUpdate{
					Name: models.Ptr("Jane Doe"), Age: models.Ptr(30), Gender: &gender,
					Symptoms: models.Ptr("headache"), Duration: models.Ptr("2 days"),
				},
				NextStep: models.StepSummary,
			})
		case "/api/intake/summarize":
			ok(w, models.MedicalSummary{
				SummaryText:    "Jane reports a headache.",
				StructuredData: models.StructuredData{Severity: models.SeverityMild},
			})
		case "/api/patients":
			_ = json.NewDecoder(r.Body).Decode(&created)
			ok(w, models.Patient{ID: patientID, Name: created.Name})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "Jane Doe, 30, headache for 2 days\ny\n", "intake")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"MedQ: Thank you.", "badge-mild", "Reference: " + patientID.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if created.Name != "Jane Doe" || created.Duration != "2 days" {
		t.Errorf("unexpected submission %+v", created)
	}
	if created.Summary == nil || created.Summary.SummaryText != "Jane reports a headache." {
		t.Errorf("expected the reviewed summary with the submission, got %+v", created.Summary)
	}
}
