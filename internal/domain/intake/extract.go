package intake

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medq/medq/pkg/models"
)

var (
	greetings = map[string]bool{
		"hi": true, "hello": true, "hey": true,
		"good morning": true, "good afternoon": true, "good evening": true,
	}
	namePrefixes  = []string{"my name is ", "my name's ", "i am ", "i'm ", "this is ", "call me "}
	noneAnswers   = map[string]bool{"none": true, "no": true, "nothing": true, "n/a": true, "na": true, "nope": true}
	durationUnits = []string{"minute", "hour", "day", "week", "month", "year"}

	digitsRe = regexp.MustCompile(`\d+`)
	wordRe   = regexp.MustCompile(`[a-z]+(?:-[a-z]+)?`)
)

// Extraction is the rule-based reading of one utterance at one step.
type Extraction struct {
	Update   models.FieldUpdate
	Greeting bool
}

// Extract reads the field the current step asks for out of message. Steps
// past allergies extract nothing.
func Extract(message string, step models.Step) Extraction {
	if !step.IsFieldStep() {
		return Extraction{}
	}
	text := strings.TrimSpace(message)
	lower := strings.ToLower(text)

	switch step {
	case models.StepName:
		if greetings[strings.Trim(lower, "!.,? ")] {
			return Extraction{Greeting: true}
		}
		if name := extractName(text); name != "" {
			return Extraction{Update: models.FieldUpdate{Name: &name}}
		}

	case models.StepAge:
		if m := digitsRe.FindString(text); m != "" {
			if age, err := strconv.Atoi(m); err == nil && age >= 1 && age <= 150 {
				return Extraction{Update: models.FieldUpdate{Age: &age}}
			}
		}

	case models.StepGender:
		if g, ok := extractGender(lower); ok {
			return Extraction{Update: models.FieldUpdate{Gender: &g}}
		}

	case models.StepSymptoms:
		if lower != "" && lower != "none" && lower != "nothing" {
			return Extraction{Update: models.FieldUpdate{Symptoms: &text}}
		}

	case models.StepDuration:
		if d, ok := extractDuration(text, lower); ok {
			return Extraction{Update: models.FieldUpdate{Duration: &d}}
		}

	case models.StepMedications:
		if v, ok := noneOrText(text, lower); ok {
			return Extraction{Update: models.FieldUpdate{Medications: &v}}
		}

	case models.StepAllergies:
		if v, ok := noneOrText(text, lower); ok {
			return Extraction{Update: models.FieldUpdate{Allergies: &v}}
		}
	}
	return Extraction{}
}

func extractName(text string) string {
	lower := strings.ToLower(text)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			text = text[len(p):]
			break
		}
	}
	return strings.TrimSpace(strings.Trim(text, "!.,?"))
}

// extractGender matches whole words so "female" and "woman" are never read
// as their male substrings.
func extractGender(lower string) (models.Gender, bool) {
	switch strings.Trim(lower, "!., ") {
	case "m":
		return models.GenderMale, true
	case "f":
		return models.GenderFemale, true
	}
	if strings.Contains(lower, "prefer not") {
		return models.GenderOther, true
	}
	words := wordRe.FindAllString(lower, -1)
	has := func(set ...string) bool {
		for _, w := range words {
			for _, s := range set {
				if w == s {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("other", "non-binary", "nonbinary", "enby"):
		return models.GenderOther, true
	case has("female", "woman", "girl", "lady"):
		return models.GenderFemale, true
	case has("male", "man", "boy", "guy"):
		return models.GenderMale, true
	}
	return "", false
}

func extractDuration(text, lower string) (string, bool) {
	if lower == "" || lower == "none" {
		return "", false
	}
	for _, unit := range durationUnits {
		if strings.Contains(lower, unit) {
			return text, true
		}
	}
	if digitsRe.MatchString(text) {
		return text + " days", true
	}
	if lower == "today" || lower == "yesterday" {
		return text, true
	}
	return "", false
}

func noneOrText(text, lower string) (string, bool) {
	if noneAnswers[strings.Trim(lower, "!.,")] {
		return "none", true
	}
	if lower == "" {
		return "", false
	}
	return text, true
}

// fieldOrder is the order in which the intake collects fields.
var fieldOrder = []models.Step{
	models.StepName, models.StepAge, models.StepGender, models.StepSymptoms,
	models.StepDuration, models.StepMedications, models.StepAllergies,
}

// NextStep returns the first step whose field is still missing, or summary
// once all are present. A greeting keeps the conversation at name.
func NextStep(d models.IntakeData, greeting bool) models.Step {
	if greeting && missing(d, models.StepName) {
		return models.StepName
	}
	for _, st := range fieldOrder {
		if missing(d, st) {
			return st
		}
	}
	return models.StepSummary
}

func missing(d models.IntakeData, st models.Step) bool {
	switch st {
	case models.StepName:
		return models.Str(d.Name) == ""
	case models.StepAge:
		return d.Age == nil || *d.Age == 0
	case models.StepGender:
		return d.Gender == nil || *d.Gender == models.GenderUnset
	case models.StepSymptoms:
		return models.Str(d.Symptoms) == ""
	case models.StepDuration:
		return models.Str(d.Duration) == ""
	case models.StepMedications:
		return models.Str(d.Medications) == ""
	case models.StepAllergies:
		return models.Str(d.Allergies) == ""
	}
	return false
}
