package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/llm"
	"github.com/medq/medq/pkg/models"
)

// chatHistoryTurns is how many prior medical-chat turns are sent to the model.
const chatHistoryTurns = 5

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrInvalidStep  = errors.New("current_step is not a valid intake step")
	ErrEmptyAudio   = errors.New("audio file is empty")
)

type Service struct {
	llm    llm.Client
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(client llm.Client, logger zerolog.Logger) *Service {
	if client == nil {
		client = llm.Disabled{}
	}
	return &Service{
		llm:    client,
		logger: logger.With().Str("component", "intake").Logger(),
		now:    time.Now,
	}
}

// ProcessText extracts the field asked for at the current step, decides the
// next step and produces the assistant's reply.
func (s *Service) ProcessText(ctx context.Context, req models.TextProcessRequest) (*models.TextProcessResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	step := req.CurrentData.CurrentStep
	if step == "" {
		step = models.StepName
	}
	if !step.Valid() {
		return nil, ErrInvalidStep
	}

	ex := Extract(message, step)
	merged := req.CurrentData
	merged.Merge(ex.Update)
	next := NextStep(merged, ex.Greeting)

	resp := &models.TextProcessResponse{ExtractedData: ex.Update, NextStep: next}

	if IsEmergency(message) {
		s.logger.Warn().Str("step", step.String()).Msg("emergency keywords in intake message")
		resp.Response = emergencyReply(message)
		resp.IsEmergency = true
		return resp, nil
	}

	reply, err := s.llm.Chat(ctx, intakeMessages(message, merged, next))
	if err != nil {
		s.logFallback(err, "intake reply")
		resp.Response = intakeReply(next, withSymptoms(ex, merged))
		return resp, nil
	}
	resp.Response = withDisclaimer(reply)
	return resp, nil
}

// withSymptoms lets the duration prompt quote symptoms recorded earlier.
func withSymptoms(ex Extraction, d models.IntakeData) Extraction {
	if ex.Update.Symptoms == nil {
		ex.Update.Symptoms = d.Symptoms
	}
	if ex.Update.Name == nil {
		ex.Update.Name = d.Name
	}
	return ex
}

// Transcribe converts an uploaded recording to text.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	text, err := s.llm.Transcribe(ctx, filename, audio)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}
	return text, nil
}

// Summarize generates the clinical summary for the collected intake. Nothing
// is stored; the reviewed summary travels with the patient submission.
func (s *Service) Summarize(ctx context.Context, req models.SummarizeRequest) (*models.MedicalSummary, error) {
	data := BuildStructuredData(req.IntakeData)

	text, err := s.llm.Chat(ctx, summaryMessages(req.IntakeData))
	if err != nil {
		s.logFallback(err, "summary")
		text = FallbackSummary(req.IntakeData, s.now())
	}

	return &models.MedicalSummary{
		SummaryText:    text,
		StructuredData: data,
		CreatedAt:      s.now().UTC(),
	}, nil
}

// MedicalChat answers a free-form health question. Emergencies never reach
// the model.
func (s *Service) MedicalChat(ctx context.Context, req models.MedicalChatRequest) (*models.MedicalChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	resp := &models.MedicalChatResponse{RequiresFollowup: true}
	if IsEmergency(message) {
		s.logger.Warn().Msg("emergency keywords in medical chat")
		resp.Response = emergencyReply(message)
		resp.IsEmergency = true
		return resp, nil
	}

	reply, err := s.llm.Chat(ctx, chatMessages(message, req.ConversationHistory))
	if err != nil {
		s.logFallback(err, "medical chat")
		resp.Response = chatFallback(message)
		resp.FallbackUsed = true
		return resp, nil
	}
	resp.Response = ensureConsult(reply)
	return resp, nil
}

// ensureConsult appends the disclaimer unless the reply already carries it.
func ensureConsult(reply string) string {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "not a diagnosis") || strings.Contains(lower, "consult") {
		return reply
	}
	return reply + disclaimerBlock
}

func (s *Service) logFallback(err error, what string) {
	if errors.Is(err, llm.ErrUnavailable) {
		s.logger.Debug().Str("path", what).Msg("language model disabled, using fallback")
		return
	}
	s.logger.Warn().Err(err).Str("path", what).Msg("language model failed, using fallback")
}
