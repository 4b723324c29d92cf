package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/medq/medq/pkg/models"
)

// AssessSeverity grades the reported symptoms with a keyword heuristic.
func AssessSeverity(symptoms, duration string) models.Severity {
	if strings.TrimSpace(symptoms) == "" {
		return models.SeverityModerate
	}
	s := strings.ToLower(symptoms)
	d := strings.ToLower(duration)

	for _, kw := range []string{"chest pain", "difficulty breathing", "severe pain", "blood", "fever over 101", "vomiting"} {
		if strings.Contains(s, kw) {
			return models.SeveritySevere
		}
	}
	for _, kw := range []string{"mild", "slight", "minor"} {
		if strings.Contains(s, kw) {
			return models.SeverityMild
		}
	}
	for _, kw := range []string{"few hours", "today", "1 day"} {
		if strings.Contains(d, kw) {
			return models.SeverityMild
		}
	}
	return models.SeverityModerate
}

var followUp = []string{
	"Follow up with primary care physician within 3-5 days",
	"Return if symptoms worsen or new symptoms develop",
	"Monitor for red flag symptoms requiring immediate care",
}

// Recommendations returns symptom-specific advice followed by the standard
// follow-up items.
func Recommendations(symptoms string) []string {
	s := strings.ToLower(symptoms)
	var recs []string

	if containsSub(s, "cold", "cough", "congestion", "runny nose") {
		recs = append(recs,
			"Stay hydrated - drink plenty of fluids",
			"Use a humidifier or breathe steam from hot shower",
			"Consider over-the-counter decongestants if needed",
			"Get adequate rest (7-9 hours of sleep)",
			"Avoid smoking and secondhand smoke",
		)
	}
	if strings.Contains(s, "fever") {
		recs = append(recs,
			"Monitor temperature regularly",
			"Use fever reducers as directed (acetaminophen or ibuprofen)",
			"Stay hydrated with clear fluids",
			"Rest and avoid strenuous activities",
		)
	}
	if strings.Contains(s, "headache") {
		recs = append(recs,
			"Apply cold or warm compress to head/neck",
			"Stay hydrated",
			"Consider over-the-counter pain relievers",
			"Rest in a quiet, dark room",
		)
	}
	return append(recs, followUp...)
}

// BuildStructuredData derives the structured summary fields from intake data.
func BuildStructuredData(d models.IntakeData) models.StructuredData {
	symptoms := strings.TrimSpace(models.Str(d.Symptoms))
	duration := strings.TrimSpace(models.Str(d.Duration))

	sd := models.StructuredData{
		ChiefComplaint:     orDefault(symptoms, "Not specified"),
		Symptoms:           []string{},
		Duration:           orDefault(duration, "Not specified"),
		Severity:           AssessSeverity(symptoms, duration),
		AssociatedSymptoms: []string{},
		MedicalHistory:     "Patient reported chief complaint as documented",
		CurrentMedications: listUnlessNone(d.Medications),
		Allergies:          listUnlessNone(d.Allergies),
		Recommendations:    Recommendations(symptoms),
	}
	if symptoms != "" {
		sd.Symptoms = []string{symptoms}
	}
	return sd
}

func listUnlessNone(v *string) []string {
	s := strings.TrimSpace(models.Str(v))
	if s == "" || strings.EqualFold(s, "none") {
		return []string{}
	}
	return []string{s}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func containsSub(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type careGuide struct {
	assessment  string
	medications []string
	remedies    []string
	redFlags    []string
}

func guideFor(symptoms string) careGuide {
	s := strings.ToLower(symptoms)
	switch {
	case strings.Contains(s, "cold") && strings.Contains(s, "cough"):
		return careGuide{
			assessment: "Symptoms are consistent with an upper respiratory tract infection (common cold), likely viral in origin.",
			medications: []string{
				"Acetaminophen (Tylenol) 500-1000mg every 6 hours as needed for discomfort",
				"Dextromethorphan (Robitussin DM) for cough suppression",
				"Pseudoephedrine (Sudafed) for nasal congestion, if no contraindications",
			},
			remedies: []string{
				"Drink warm fluids such as tea with honey or warm broth",
				"Gargle with warm salt water for sore throat",
				"Use a humidifier or inhale steam",
				"Get 7-9 hours of rest",
			},
			redFlags: []string{
				"Difficulty breathing or shortness of breath",
				"Fever above 103°F (39.4°C)",
				"Symptoms lasting more than 10 days",
				"Chest pain or coughing up blood",
			},
		}
	case strings.Contains(s, "fever"):
		return careGuide{
			assessment: "Patient presents with fever, which may indicate an infectious process. Further evaluation recommended to identify the source.",
			medications: []string{
				"Acetaminophen (Tylenol) 500-1000mg every 6 hours as needed",
				"Ibuprofen (Advil) 400-600mg every 6-8 hours with food, as an alternative",
			},
			remedies: []string{
				"Drink plenty of clear fluids",
				"Rest and avoid strenuous activity",
				"Use a cool compress on the forehead",
				"Dress in light clothing",
			},
			redFlags: []string{
				"Fever above 103°F (39.4°C) or lasting more than 3 days",
				"Stiff neck, confusion or severe headache",
				"Rash that does not fade under pressure",
				"Difficulty breathing",
			},
		}
	case strings.Contains(s, "headache"):
		return careGuide{
			assessment: "Patient reports headache. Likely tension-type or primary headache; secondary causes should be excluded on examination.",
			medications: []string{
				"Acetaminophen (Tylenol) 500-1000mg as needed",
				"Ibuprofen (Advil) 400mg every 6-8 hours with food",
			},
			remedies: []string{
				"Rest in a quiet, dark room",
				"Apply a cold or warm compress to the head or neck",
				"Stay hydrated",
				"Limit screen time and caffeine",
			},
			redFlags: []string{
				"Sudden, severe headache (worst of your life)",
				"Headache with fever and stiff neck",
				"Vision changes, weakness or difficulty speaking",
				"Headache after a head injury",
			},
		}
	}
	return careGuide{
		assessment: "Patient symptoms require clinical evaluation to determine the underlying cause and appropriate treatment.",
		medications: []string{
			"Over-the-counter medication only as directed by a pharmacist or physician",
		},
		remedies: []string{
			"Rest and stay hydrated",
			"Keep a record of symptoms and any triggers",
			"Maintain a balanced diet",
		},
		redFlags: []string{
			"Symptoms that suddenly worsen",
			"Difficulty breathing or chest pain",
			"High fever or confusion",
		},
	}
}

// FallbackSummary renders the clinical summary text used when the language
// model cannot produce one.
func FallbackSummary(d models.IntakeData, now time.Time) string {
	name := orDefault(models.Str(d.Name), "Not provided")
	age := "Not provided"
	if d.Age != nil && *d.Age > 0 {
		age = fmt.Sprintf("%d", *d.Age)
	}
	gender := "Not provided"
	if d.Gender != nil && *d.Gender != models.GenderUnset {
		gender = string(*d.Gender)
	}
	symptoms := orDefault(models.Str(d.Symptoms), "Not specified")
	duration := orDefault(models.Str(d.Duration), "Not specified")
	meds := orDefault(models.Str(d.Medications), "None reported")
	allergies := orDefault(models.Str(d.Allergies), "None reported")
	g := guideFor(symptoms)

	var b strings.Builder
	fmt.Fprintf(&b, "MEDICAL INTAKE SUMMARY\nDate: %s\n\n", now.Format("January 2, 2006"))
	fmt.Fprintf(&b, "PATIENT INFORMATION\nName: %s\nAge: %s\nGender: %s\n\n", name, age, gender)
	fmt.Fprintf(&b, "CHIEF COMPLAINT\n%s\n\n", symptoms)
	fmt.Fprintf(&b, "HISTORY OF PRESENT ILLNESS\n%s-year-old %s presents with %s for %s. %s\n\n",
		age, gender, strings.ToLower(symptoms), duration, g.assessment)
	fmt.Fprintf(&b, "CURRENT MEDICATIONS\n%s\n\n", meds)
	fmt.Fprintf(&b, "ALLERGIES\n%s\n\n", allergies)
	fmt.Fprintf(&b, "CLINICAL ASSESSMENT\nSeverity: %s\n%s\n\n", AssessSeverity(models.Str(d.Symptoms), models.Str(d.Duration)), g.assessment)
	writeList(&b, "RECOMMENDED MEDICATIONS", g.medications)
	writeList(&b, "HOME REMEDIES", g.remedies)
	writeList(&b, "WHEN TO SEEK IMMEDIATE CARE", g.redFlags)
	writeList(&b, "FOLLOW-UP", followUp)
	fmt.Fprintf(&b, "ADDITIONAL NOTES\nThis summary was generated from patient-reported information. %s", Disclaimer)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	b.WriteString(title)
	b.WriteByte('\n')
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}
