package intakeflow

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/medq/medq/pkg/models"
)

// Badge classes for the severity indicator.
const (
	BadgeSevere   = "badge-severe"
	BadgeModerate = "badge-moderate"
	BadgeMild     = "badge-mild"
	BadgeUnknown  = "badge-unknown"
)

// BadgeClass maps a severity to its badge class.
func BadgeClass(s models.Severity) string {
	switch s {
	case models.SeveritySevere:
		return BadgeSevere
	case models.SeverityModerate:
		return BadgeModerate
	case models.SeverityMild:
		return BadgeMild
	}
	return BadgeUnknown
}

type Section struct {
	Title string
	Items []string
}

// SummaryView is the read-only presentation of a generated summary.
type SummaryView struct {
	Text           string
	ChiefComplaint string
	Duration       string
	Severity       models.Severity
	BadgeClass     string
	Sections       []Section
	CreatedAt      time.Time
}

// NewSummaryView builds the view for ms. A nil summary gives an empty view
// with the unknown badge.
func NewSummaryView(ms *models.MedicalSummary) SummaryView {
	if ms == nil {
		return SummaryView{BadgeClass: BadgeUnknown}
	}
	sd := ms.StructuredData
	v := SummaryView{
		Text:           ms.SummaryText,
		ChiefComplaint: sd.ChiefComplaint,
		Duration:       sd.Duration,
		Severity:       sd.Severity,
		BadgeClass:     BadgeClass(sd.Severity),
		CreatedAt:      ms.CreatedAt,
	}
	for _, s := range []Section{
		{"Symptoms", sd.Symptoms},
		{"Associated Symptoms", sd.AssociatedSymptoms},
		{"Current Medications", sd.CurrentMedications},
		{"Allergies", sd.Allergies},
		{"Recommendations", sd.Recommendations},
		{"ICD Codes", ms.ICDCodes},
	} {
		if len(s.Items) > 0 {
			v.Sections = append(v.Sections, s)
		}
	}
	return v
}

// Render writes the view as plain text.
func (v SummaryView) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity: %s [%s]\n", orUnknown(string(v.Severity)), v.BadgeClass)
	if v.ChiefComplaint != "" {
		fmt.Fprintf(&b, "Chief complaint: %s\n", v.ChiefComplaint)
	}
	if v.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", v.Duration)
	}
	for _, s := range v.Sections {
		fmt.Fprintf(&b, "\n%s:\n", s.Title)
		for _, item := range s.Items {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
	}
	if v.Text != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
