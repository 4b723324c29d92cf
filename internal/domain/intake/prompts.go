package intake

import (
	"fmt"
	"strings"

	"github.com/medq/medq/internal/platform/llm"
	"github.com/medq/medq/pkg/models"
)

const assistantPersona = `You are Dr. Sarah, a warm and professional AI medical intake assistant.
You gather information before a consultation with a licensed healthcare provider.
Never give a diagnosis. Keep replies short, empathetic and clear, and ask one question at a time.
If the patient describes an emergency, tell them to seek immediate medical care.`

const summaryInstructions = `Write a concise clinical intake summary for a physician with these sections:
PATIENT INFORMATION, CHIEF COMPLAINT, HISTORY OF PRESENT ILLNESS, CURRENT MEDICATIONS, ALLERGIES,
CLINICAL ASSESSMENT, RECOMMENDATIONS, WHEN TO SEEK IMMEDIATE CARE.
Use only the information provided. End with: "` + Disclaimer + `"`

func intakeMessages(message string, d models.IntakeData, next models.Step) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: assistantPersona},
		{Role: "user", Content: fmt.Sprintf(
			"Collected so far:\n%s\n\nThe patient just said: %q\n\nReply to the patient, acknowledge what they said and ask for their %s.",
			describe(d), message, stepQuestion(next))},
	}
}

func stepQuestion(st models.Step) string {
	switch st {
	case models.StepMedications:
		return "current medications (or 'none')"
	case models.StepAllergies:
		return "allergies (or 'none')"
	case models.StepSummary:
		return "confirmation that they would like their medical summary generated now"
	}
	return st.String()
}

func summaryMessages(d models.IntakeData) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: assistantPersona},
		{Role: "user", Content: summaryInstructions + "\n\nPatient data:\n" + describe(d)},
	}
}

func chatMessages(message string, history []models.ConversationTurn) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: assistantPersona}}
	if len(history) > chatHistoryTurns {
		history = history[len(history)-chatHistoryTurns:]
	}
	for _, turn := range history {
		role := "user"
		if turn.Role == "assistant" || turn.Role == "bot" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: message})
}

func describe(d models.IntakeData) string {
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	line("Name", models.Str(d.Name))
	if d.Age != nil {
		line("Age", fmt.Sprintf("%d", *d.Age))
	}
	if d.Gender != nil {
		line("Gender", string(*d.Gender))
	}
	line("Symptoms", models.Str(d.Symptoms))
	line("Duration", models.Str(d.Duration))
	line("Medications", models.Str(d.Medications))
	line("Allergies", models.Str(d.Allergies))
	if b.Len() == 0 {
		return "- nothing yet\n"
	}
	return b.String()
}
