// Package llm wraps the language model provider used for intake replies,
// medical summaries and speech-to-text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable is returned by every call when no provider is configured.
var ErrUnavailable = errors.New("language model unavailable")

// Message is one chat turn. Role must be "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client is what the intake service needs from a language model.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Config selects the provider endpoint and models.
type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
	Temperature     float32
}

// OpenAIClient calls an OpenAI-compatible API.
type OpenAIClient struct {
	client          *openai.Client
	chatModel       string
	transcribeModel string
	temperature     float32
}

// New returns an OpenAI-backed client, or a Disabled client when no API key
// is configured.
func New(cfg Config) Client {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	return &OpenAIClient{
		client:          openai.NewClientWithConfig(oc),
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
		temperature:     cfg.Temperature,
	}
}

// Chat sends the message history and returns the first choice's content.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    oaMsgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion: empty content")
	}
	return text, nil
}

// Transcribe converts recorded speech to text.
func (c *OpenAIClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if filename == "" {
		filename = "recording.webm"
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Disabled answers every call with ErrUnavailable so callers fall back to
// their rule-based paths.
type Disabled struct{}

func (Disabled) Chat(context.Context, []Message) (string, error) { return "", ErrUnavailable }

func (Disabled) Transcribe(context.Context, string, io.Reader) (string, error) {
	return "", ErrUnavailable
}
