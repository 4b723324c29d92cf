package intakeflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medq/medq/pkg/models"
)

var (
	ErrEmptyUtterance   = errors.New("message is empty")
	ErrSummaryInFlight  = errors.New("summary generation already in progress")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadySubmitted = errors.New("intake already submitted")
)

// chatHistoryTurns is how many transcript entries accompany a medical-chat
// message.
const chatHistoryTurns = 10

// IntakeAPI is the intake half of the MedQ API.
type IntakeAPI interface {
	TextProcessor
	Summarize(ctx context.Context, data models.IntakeData) (*models.MedicalSummary, error)
	MedicalChat(ctx context.Context, message string, history []models.ConversationTurn) (*models.MedicalChatResponse, error)
}

type PatientAPI interface {
	Create(ctx context.Context, p models.PatientCreate) (*models.Patient, error)
}

// Mode selects where utterances go: the guided intake or free medical chat.
type Mode int

const (
	ModeIntake Mode = iota
	ModeMedicalChat
)

type View int

const (
	ViewChat View = iota
	ViewSubmitted
)

type Config struct {
	Intake   IntakeAPI
	Patients PatientAPI
	// Recognizer is optional; without one voice input is unavailable.
	Recognizer Recognizer
	Mode       Mode
	Logger     zerolog.Logger
}

// Controller owns one intake conversation: the transcript, the step
// machine, voice capture, summary generation and the final submission.
// Failed calls are logged, reported as a bot message where the patient
// should see them, and leave the controller as it was before the call.
type Controller struct {
	intake   IntakeAPI
	patients PatientAPI
	machine  *Machine
	voice    *VoiceCapture
	mode     Mode
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	transcript  []ChatMessage
	summary     *models.MedicalSummary
	summarizing bool
	submitting  bool
	patient     *models.Patient
	view        View
}

func NewController(cfg Config) *Controller {
	c := &Controller{
		intake:   cfg.Intake,
		patients: cfg.Patients,
		machine:  NewMachine(cfg.Intake),
		voice:    NewVoiceCapture(cfg.Recognizer),
		mode:     cfg.Mode,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if c.mode == ModeMedicalChat {
		c.appendBot(medicalChatGreeting, false)
	} else {
		c.appendBot(greeting, false)
	}
	return c
}

// Transcript returns a copy of the conversation so far.
func (c *Controller) Transcript() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Controller) Data() models.IntakeData { return c.machine.Data() }

func (c *Controller) Step() models.Step { return c.machine.Step() }

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) Voice() CaptureStatus { return c.voice.Status() }

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Summary() *models.MedicalSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

func (c *Controller) Patient() *models.Patient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patient
}

// SummaryReady reports whether the intake has reached the summary step and
// no summary has been generated yet.
func (c *Controller) SummaryReady() bool {
	if c.mode != ModeIntake {
		return false
	}
	step := c.machine.Step()
	c.mu.Lock()
	defer c.mu.Unlock()
	return (step == models.StepSummary || step == models.StepComplete) && c.summary == nil
}

// SubmitText handles a typed message.
func (c *Controller) SubmitText(ctx context.Context, text string) (ChatMessage, error) {
	return c.handleUtterance(ctx, text)
}

// SubmitVoice captures one spoken utterance and handles it like typed text.
// It is a no-op, returning a zero message and nil, when a capture is
// already listening. Cancelling ctx stops the capture without a message.
func (c *Controller) SubmitVoice(ctx context.Context) (ChatMessage, error) {
	text, started, err := c.voice.Capture(ctx)
	if errors.Is(err, ErrRecognizerUnavailable) {
		return c.appendBot(voiceUnavailable, false), err
	}
	if !started {
		return ChatMessage{}, nil
	}
	defer c.voice.Reset()

	if ctx.Err() != nil {
		return ChatMessage{}, err
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		c.logger.Warn().Err(err).Str("kind", string(ce.Kind)).Msg("voice capture failed")
		return c.appendBot(ce.Kind.Message(), false), err
	}
	if err != nil {
		return ChatMessage{}, err
	}
	return c.handleUtterance(ctx, text)
}

// handleUtterance is the single entry point for both input channels.
func (c *Controller) handleUtterance(ctx context.Context, text string) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrEmptyUtterance
	}
	history := c.history()
	c.appendUser(text)

	if c.mode == ModeMedicalChat {
		res, err := c.intake.MedicalChat(ctx, text, history)
		if err != nil {
			c.logger.Error().Err(err).Msg("medical chat failed")
			return c.appendBot(retryMessage, false), err
		}
		return c.appendBot(res.Response, res.IsEmergency), nil
	}

	res, err := c.machine.Process(ctx, text)
	if err != nil {
		c.logger.Error().Err(err).Msg("intake step failed")
		return c.appendBot(retryMessage, false), err
	}
	reply := c.appendBot(res.Response, res.IsEmergency)
	if res.NextStep == models.StepSummary && !res.IsEmergency {
		c.appendBot(summaryReadyPrompt, false)
	}
	return reply, nil
}

// GenerateSummary asks the server to summarise the intake. A call made
// while another is pending returns ErrSummaryInFlight without touching the
// network.
func (c *Controller) GenerateSummary(ctx context.Context) (*models.MedicalSummary, error) {
	c.mu.Lock()
	if c.summarizing {
		c.mu.Unlock()
		return nil, ErrSummaryInFlight
	}
	c.summarizing = true
	c.mu.Unlock()

	ms, err := c.intake.Summarize(ctx, c.machine.Data())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarizing = false
	if err != nil {
		c.logger.Error().Err(err).Msg("summary generation failed")
		return nil, err
	}
	c.summary = ms
	return ms, nil
}

// Submit stores the patient and moves to the submitted view. A summary the
// patient has reviewed travels with the submission and is stored as shown.
// Submit returns ErrSummaryInFlight while a summary is still being
// generated.
func (c *Controller) Submit(ctx context.Context) (*models.Patient, error) {
	c.mu.Lock()
	switch {
	case c.view == ViewSubmitted:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case c.summarizing:
		c.mu.Unlock()
		return nil, ErrSummaryInFlight
	case c.submitting:
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	c.submitting = true
	reviewed := c.summary
	c.mu.Unlock()

	p, err := c.submit(ctx, reviewed)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("patient submission failed")
		return nil, err
	}
	c.patient = p
	c.view = ViewSubmitted
	if reviewed != nil {
		stored := *reviewed
		stored.PatientID = p.ID
		c.summary = &stored
	}
	c.mu.Unlock()

	c.appendBot(submittedMessage, false)
	return p, nil
}

func (c *Controller) submit(ctx context.Context, reviewed *models.MedicalSummary) (*models.Patient, error) {
	req, err := c.machine.Submission()
	if err != nil {
		return nil, err
	}
	if reviewed != nil {
		req.Summary = &models.SummaryDraft{
			SummaryText:    reviewed.SummaryText,
			StructuredData: reviewed.StructuredData,
		}
	}
	return c.patients.Create(ctx, req)
}

// history converts the tail of the transcript into medical-chat turns.
func (c *Controller) history() []models.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.transcript
	if len(msgs) > chatHistoryTurns {
		msgs = msgs[len(msgs)-chatHistoryTurns:]
	}
	out := make([]models.ConversationTurn, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Sender == SenderBot {
			role = "assistant"
		}
		out = append(out, models.ConversationTurn{Role: role, Content: m.Text})
	}
	return out
}

func (c *Controller) appendUser(text string) ChatMessage {
	return c.append(ChatMessage{Sender: SenderUser, Text: text})
}

func (c *Controller) appendBot(text string, emergency bool) ChatMessage {
	return c.append(ChatMessage{Sender: SenderBot, Text: text, Emergency: emergency})
}

func (c *Controller) append(m ChatMessage) ChatMessage {
	m.ID = uuid.New()
	m.CreatedAt = c.now()
	c.mu.Lock()
	c.transcript = append(c.transcript, m)
	c.mu.Unlock()
	return m
}
