package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/medq/medq/pkg/models"
)

// defaultAudioType is assumed for recordings whose name has no audio
// extension; browsers record webm.
const defaultAudioType = "audio/webm"

type IntakeService struct {
	c *Client
}

// Transcribe uploads a recording and returns the transcript.
func (s *IntakeService) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", audioType(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("apiclient: create audio part: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("apiclient: read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("apiclient: close multipart: %w", err)
	}

	var out models.VoiceTranscript
	err = s.c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/intake/voice",
		body:        io.Reader(body),
		contentType: mw.FormDataContentType(),
	}, &out)
	return out.Transcript, err
}

func audioType(filename string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if strings.HasPrefix(t, "audio/") {
		return t
	}
	return defaultAudioType
}

// ProcessText sends one utterance with the current intake state.
func (s *IntakeService) ProcessText(ctx context.Context, message string, current models.IntakeData) (*models.TextProcessResponse, error) {
	var out models.TextProcessResponse
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/intake/text",
		body:   models.TextProcessRequest{Message: message, CurrentData: current},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Summarize generates a medical summary for review. The server does not
// store it; attach it to the patient submission for that.
func (s *IntakeService) Summarize(ctx context.Context, data models.IntakeData) (*models.MedicalSummary, error) {
	var out models.MedicalSummary
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/intake/summarize",
		body:   models.SummarizeRequest{IntakeData: data},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntakeService) MedicalChat(ctx context.Context, message string, history []models.ConversationTurn) (*models.MedicalChatResponse, error) {
	var out models.MedicalChatResponse
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/intake/medical-chat",
		body:   models.MedicalChatRequest{Message: message, ConversationHistory: history},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
