package intake

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/llm"
	"github.com/medq/medq/pkg/models"
)

type stubLLM struct {
	reply      string
	err        error
	transcript string
	calls      int
	last       []llm.Message
}

func (s *stubLLM) Chat(_ context.Context, msgs []llm.Message) (string, error) {
	s.calls++
	s.last = msgs
	return s.reply, s.err
}

func (s *stubLLM) Transcribe(_ context.Context, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	return s.transcript, nil
}

func newTestService(client llm.Client) *Service {
	svc := NewService(client, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_ProcessText_NameFallback(t *testing.T) {
	svc := newTestService(llm.Disabled{})

	resp, err := svc.ProcessText(context.Background(), models.TextProcessRequest{
		Message:     "My name is John Doe",
		CurrentData: models.IntakeData{CurrentStep: models.StepName},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if models.Str(resp.ExtractedData.Name) != "John Doe" {
		t.Errorf("expected name John Doe, got %q", models.Str(resp.ExtractedData.Name))
	}
	if resp.NextStep != models.StepAge {
		t.Errorf("expected next step age, got %s", resp.NextStep)
	}
	if !strings.HasPrefix(resp.Response, "Thank you, John Doe.") {
		t.Errorf("unexpected reply %q", resp.Response)
	}
}

func TestService_ProcessText_Greeting(t *testing.T) {
	svc := newTestService(llm.Disabled{})

	resp, err := svc.ProcessText(context.Background(), models.TextProcessRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NextStep != models.StepName {
		t.Errorf("expected to stay at name, got %s", resp.NextStep)
	}
	if resp.Response != greetingReply {
		t.Errorf("unexpected reply %q", resp.Response)
	}
}

func TestService_ProcessText_EmergencySkipsModel(t *testing.T) {
	stub := &stubLLM{reply: "should not be used"}
	svc := newTestService(stub)

	resp, err := svc.ProcessText(context.Background(), models.TextProcessRequest{
		Message: "I have chest pain",
		CurrentData: models.IntakeData{
			Name: models.Ptr("Ana"), Age: models.Ptr(50), Gender: models.Ptr(models.GenderFemale),
			CurrentStep: models.StepSymptoms,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsEmergency {
		t.Error("expected emergency flag")
	}
	if stub.calls != 0 {
		t.Errorf("expected no model call, got %d", stub.calls)
	}
	if models.Str(resp.ExtractedData.Symptoms) != "I have chest pain" {
		t.Errorf("symptoms should still be extracted, got %+v", resp.ExtractedData)
	}
	if resp.NextStep != models.StepDuration {
		t.Errorf("expected duration, got %s", resp.NextStep)
	}
}

func TestService_ProcessText_ModelReplyGetsDisclaimer(t *testing.T) {
	stub := &stubLLM{reply: "Thanks! How long have you had these symptoms?"}
	svc := newTestService(stub)

	resp, err := svc.ProcessText(context.Background(), models.TextProcessRequest{
		Message:     "headache",
		CurrentData: models.IntakeData{CurrentStep: models.StepSymptoms},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(resp.Response, Disclaimer) {
		t.Errorf("expected disclaimer, got %q", resp.Response)
	}
	if stub.calls != 1 {
		t.Errorf("expected one model call, got %d", stub.calls)
	}
}

func TestService_ProcessText_DurationFallbackQuotesSymptoms(t *testing.T) {
	svc := newTestService(&stubLLM{err: errors.New("provider down")})

	resp, err := svc.ProcessText(context.Background(), models.TextProcessRequest{
		Message: "a dull headache",
		CurrentData: models.IntakeData{
			Name: models.Ptr("Ana"), Age: models.Ptr(29), Gender: models.Ptr(models.GenderFemale),
			CurrentStep: models.StepSymptoms,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Response, "I understand you're experiencing a dull headache.") {
		t.Errorf("unexpected reply %q", resp.Response)
	}
}

func TestService_ProcessText_Validation(t *testing.T) {
	svc := newTestService(llm.Disabled{})

	if _, err := svc.ProcessText(context.Background(), models.TextProcessRequest{Message: "  "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	_, err := svc.ProcessText(context.Background(), models.TextProcessRequest{
		Message:     "hi",
		CurrentData: models.IntakeData{CurrentStep: models.Step("bogus")},
	})
	if !errors.Is(err, ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}

func TestService_Summarize_Fallback(t *testing.T) {
	svc := newTestService(llm.Disabled{})

	out, err := svc.Summarize(context.Background(), models.SummarizeRequest{
		IntakeData: models.IntakeData{Name: models.Ptr("Ana"), Symptoms: models.Ptr("fever")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.SummaryText, "MEDICAL INTAKE SUMMARY") {
		t.Errorf("expected fallback summary, got %q", out.SummaryText)
	}
	if out.ID != uuid.Nil || out.PatientID != uuid.Nil {
		t.Errorf("generated summary must not be attached to a patient, got %+v", out)
	}
}

func TestService_Summarize_Model(t *testing.T) {
	svc := newTestService(&stubLLM{reply: "CHIEF COMPLAINT: cough"})

	out, err := svc.Summarize(context.Background(), models.SummarizeRequest{
		IntakeData: models.IntakeData{Symptoms: models.Ptr("cough")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SummaryText != "CHIEF COMPLAINT: cough" {
		t.Errorf("unexpected text %q", out.SummaryText)
	}
	if out.StructuredData.ChiefComplaint != "cough" {
		t.Errorf("unexpected structured data %+v", out.StructuredData)
	}
}

func TestService_MedicalChat_TrimsHistory(t *testing.T) {
	stub := &stubLLM{reply: "Rest well. Consult a doctor if it persists."}
	svc := newTestService(stub)

	var history []models.ConversationTurn
	for i := 0; i < 8; i++ {
		history = append(history, models.ConversationTurn{Role: "user", Content: "turn"})
	}
	resp, err := svc.MedicalChat(context.Background(), models.MedicalChatRequest{
		Message:             "I feel tired",
		ConversationHistory: history,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// system + 5 history turns + the new message
	if len(stub.last) != 7 {
		t.Errorf("expected 7 messages, got %d", len(stub.last))
	}
	if resp.Response != stub.reply {
		t.Errorf("reply mentioning consult should be unchanged, got %q", resp.Response)
	}
	if !resp.RequiresFollowup || resp.ConversationComplete || resp.FallbackUsed {
		t.Errorf("unexpected flags %+v", resp)
	}
}

func TestService_MedicalChat_Fallback(t *testing.T) {
	svc := newTestService(&stubLLM{err: errors.New("timeout")})

	resp, err := svc.MedicalChat(context.Background(), models.MedicalChatRequest{Message: "I have a fever"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.FallbackUsed {
		t.Error("expected fallback_used")
	}
	if !strings.HasPrefix(resp.Response, "I'm sorry to hear") {
		t.Errorf("unexpected reply %q", resp.Response)
	}
}

func TestService_MedicalChat_Emergency(t *testing.T) {
	stub := &stubLLM{reply: "unused"}
	svc := newTestService(stub)

	resp, err := svc.MedicalChat(context.Background(), models.MedicalChatRequest{Message: "he is choking"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsEmergency || stub.calls != 0 {
		t.Errorf("expected emergency without model call, got %+v calls=%d", resp, stub.calls)
	}
}

func TestService_Transcribe(t *testing.T) {
	svc := newTestService(&stubLLM{transcript: "I have a headache"})
	got, err := svc.Transcribe(context.Background(), "rec.webm", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "I have a headache" {
		t.Errorf("unexpected transcript %q", got)
	}

	svc = newTestService(llm.Disabled{})
	if _, err := svc.Transcribe(context.Background(), "rec.webm", strings.NewReader("bytes")); !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
