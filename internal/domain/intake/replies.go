package intake

import (
	"fmt"
	"strings"

	"github.com/medq/medq/pkg/models"
)

// Disclaimer is appended to any reply that carries medical content.
const Disclaimer = "This is not a diagnosis. Please consult a licensed medical professional for proper care."

const disclaimerBlock = "\n\n⚠️ **Important:** " + Disclaimer

var emergencyKeywords = []string{
	"chest pain", "difficulty breathing", "can't breathe", "cannot breathe", "unconscious",
	"bleeding heavily", "severe bleeding", "heart attack", "stroke",
	"difficulty speaking", "weakness on one side", "severe headache",
	"sudden vision loss", "severe abdominal pain", "choking",
}

// IsEmergency reports whether message mentions a red-flag symptom.
func IsEmergency(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func emergencyReply(message string) string {
	return "🚨 **EMERGENCY ALERT** 🚨\n\n" +
		"Based on your symptoms, you should seek IMMEDIATE medical attention. " +
		"Please go to the nearest emergency room or call emergency services right away.\n\n" +
		fmt.Sprintf("If you're experiencing %s, this could be a serious medical emergency that requires immediate professional care.",
			strings.ToLower(strings.TrimSpace(message))) +
		disclaimerBlock
}

var medicalWords = []string{"symptom", "pain", "medical", "health", "condition"}

// withDisclaimer appends the disclaimer to medical replies that neither
// state it nor already point the reader to a professional.
func withDisclaimer(reply string) string {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "not a diagnosis") || strings.Contains(lower, "consult") {
		return reply
	}
	for _, w := range medicalWords {
		if strings.Contains(lower, w) {
			return reply + disclaimerBlock
		}
	}
	return reply
}

const greetingReply = "Hello! I'm Dr. Sarah, your AI medical assistant. I'm here to help gather some information " +
	"before your consultation to ensure your healthcare provider can give you the best possible care.\n\n" +
	"I'll ask you a few questions to understand your situation better. This is completely confidential " +
	"and will help make your appointment more efficient.\n\nLet's start - could you please tell me your name?"

// intakeReply is the canned reply for the step the conversation moves to.
func intakeReply(next models.Step, ex Extraction) string {
	if ex.Greeting {
		return greetingReply
	}
	switch next {
	case models.StepName:
		return "Hello! I'm Dr. Sarah, your AI medical assistant. I'm here to help gather some information " +
			"before your consultation. Let's start - could you please tell me your name?"
	case models.StepAge:
		return fmt.Sprintf("Thank you, %s. It's good to meet you! I'll be guiding you through some questions "+
			"to help prepare for your healthcare consultation.\n\nCould you please tell me your age?",
			models.Str(ex.Update.Name))
	case models.StepGender:
		return "Thank you for sharing that. Now, to help me understand your medical profile better, " +
			"what's your gender? You can say male, female, or other."
	case models.StepSymptoms:
		return "Perfect, thank you. Now, I'd like to understand what brought you here today. Could you describe " +
			"your main symptoms or health concerns? Please take your time and share as much detail as you're comfortable with."
	case models.StepDuration:
		symptoms := models.Str(ex.Update.Symptoms)
		if symptoms == "" {
			symptoms = "these symptoms"
		}
		return fmt.Sprintf("I understand you're experiencing %s. That must be concerning for you.\n\n"+
			"To help your healthcare provider understand the timeline, how long have you been experiencing these symptoms?", symptoms)
	case models.StepMedications:
		return "Thank you for that information. Knowing the timeline helps a lot.\n\nNow, are you currently taking " +
			"any medications? This includes prescription medications, over-the-counter drugs, vitamins, or supplements. " +
			"If you're not taking anything, just say 'none'."
	case models.StepAllergies:
		return "I've noted that information about your medications.\n\nLastly, do you have any allergies I should " +
			"know about? This includes food allergies, drug allergies, or environmental allergies. If you don't have any, just say 'none'."
	case models.StepSummary:
		return "Perfect! Thank you for providing all that information. You've been very thorough.\n\n" +
			"I now have everything I need to create a comprehensive summary for your healthcare provider. " +
			"This will help them understand your situation quickly and focus on addressing your concerns.\n\n" +
			"Would you like me to generate your medical summary now?"
	case models.StepComplete:
		return "Thank you for using our medical intake system. I hope this helps make your consultation more effective!"
	}
	return "Thank you for that information. Let me know if you have any questions about the next step in your intake process."
}

// chatFallback answers a medical-chat message without the language model.
func chatFallback(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))

	switch {
	case containsAny(lower, "hi", "hello", "hey", "good morning", "good afternoon"):
		return "Hello! I'm Dr. Sarah, your AI medical assistant. I'm here to help you with your health concerns.\n\n" +
			"I understand you're reaching out for medical guidance. While I'd love to provide more detailed responses, " +
			"I'm currently experiencing high usage.\n\nTo help you effectively, could you please tell me:\n" +
			"1. What symptoms are you experiencing?\n2. How long have you had these symptoms?\n" +
			"3. Are you currently taking any medications?" + disclaimerBlock

	case containsAny(lower, "pain", "hurt", "ache", "tired", "fever", "sick", "nausea"):
		return fmt.Sprintf("I'm sorry to hear you're experiencing %s. That must be concerning for you.\n\n", lower) +
			"To better understand your situation, could you tell me:\n" +
			"1. How long have you been experiencing these symptoms?\n" +
			"2. On a scale of 1-10, how would you rate the severity?\n" +
			"3. Have you noticed anything that makes it better or worse?\n\n" +
			"For immediate relief, you might consider:\n- Getting adequate rest\n- Staying hydrated\n- Monitoring your symptoms\n\n" +
			"However, if your symptoms are severe, getting worse, or you're concerned, please don't hesitate to contact a healthcare provider." +
			disclaimerBlock

	case containsAny(lower, "day", "week", "month", "hour", "long"):
		return fmt.Sprintf("Thank you for sharing that information. %s can help me understand your situation better.\n\n", strings.TrimSpace(message)) +
			"Based on what you've told me, here are some general wellness suggestions:\n" +
			"- Monitor your symptoms and how they progress\n- Keep track of any triggers or patterns\n" +
			"- Maintain good hydration and nutrition\n- Get adequate rest\n\n" +
			"If your symptoms are persistent, getting worse, or interfering with your daily life, it would be wise to " +
			"consult with a healthcare provider who can properly evaluate your condition." + disclaimerBlock
	}

	return "I hear you, and I want to help. While I'm currently experiencing high usage and can't provide detailed AI responses, " +
		"I'm still here to offer support.\n\nFor any health concerns like what you've described, I'd recommend:\n" +
		"1. Monitoring your symptoms carefully\n2. Noting any changes or patterns\n" +
		"3. Consulting with a healthcare provider if you're concerned\n\n" +
		"If this is urgent or you're experiencing severe symptoms, please don't hesitate to contact a medical professional or emergency services." +
		disclaimerBlock
}

// containsAny matches whole words for single-word needles and substrings
// for phrases, so "hi" does not fire on "this".
func containsAny(lower string, needles ...string) bool {
	words := wordRe.FindAllString(lower, -1)
	for _, n := range needles {
		if strings.Contains(n, " ") {
			if strings.Contains(lower, n) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == n || (len(n) >= 3 && strings.HasPrefix(w, n)) {
				return true
			}
		}
	}
	return false
}
