package patient

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/medq/medq/pkg/models"
)

const pdfLineWidth = 80

// WritePDF renders the patient report: demographics, reported symptoms and
// the latest summary when one exists.
func WritePDF(w io.Writer, p *models.Patient, summary *models.MedicalSummary) error {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(50, 50, 50)
	doc.SetAutoPageBreak(true, 100)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 20, "MedQ - Medical Summary Report", "", 1, "L", false, 0, "")
	doc.Ln(30)

	section(doc, "Patient Information:")
	doc.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		"Name: " + p.Name,
		fmt.Sprintf("Age: %d", p.Age),
		"Gender: " + string(p.Gender),
		"Date: " + p.CreatedAt.Format("2006-01-02 15:04"),
	} {
		doc.CellFormat(0, 20, tr(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(20)

	section(doc, "Symptoms:")
	writeLines(doc, tr, p.Symptoms)

	if summary != nil {
		doc.Ln(30)
		section(doc, "AI Summary:")
		writeLines(doc, tr, summary.SummaryText)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func section(doc *fpdf.Fpdf, title string) {
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 30, title, "", 1, "L", false, 0, "")
}

func writeLines(doc *fpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "", 10)
	for _, line := range strings.Split(text, "\n") {
		doc.CellFormat(0, 15, tr(truncate(line, pdfLineWidth)), "", 1, "L", false, 0, "")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PDFFilename is the attachment name of a patient report.
func PDFFilename(id fmt.Stringer) string {
	return fmt.Sprintf("patient_%s_summary.pdf", id)
}
