package intakeflow

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one transcript entry. Transcripts are append-only.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Emergency bool      `json:"emergency,omitempty"`
}

const (
	greeting = "Hello! I'm your AI medical assistant. I'll ask a few questions about how you're feeling " +
		"so the doctor has what they need. Let's start with your name."
	medicalChatGreeting = "Hello! Tell me what's bothering you and I'll do my best to help. " +
		"If this is an emergency, call 911 right away."
	retryMessage       = "I'm sorry, I had trouble processing that. Could you please try again?"
	voiceUnavailable   = "Voice input isn't available here. Please type your message instead."
	summaryReadyPrompt = "Thank you, I have everything I need. I can now prepare a summary for the doctor."
	submittedMessage   = "Your information has been submitted. A doctor will review it shortly."
)
