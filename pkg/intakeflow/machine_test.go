package intakeflow

import (
	"context"
	"errors"
	"testing"

	"github.com/medq/medq/pkg/models"
)

// scriptedProcessor replays canned replies in order and records the state
// it was sent.
type scriptedProcessor struct {
	replies []*models.TextProcessResponse
	errs    []error
	sent    []models.IntakeData
}

func (s *scriptedProcessor) ProcessText(_ context.Context, _ string, current models.IntakeData) (*models.TextProcessResponse, error) {
	i := len(s.sent)
	s.sent = append(s.sent, current)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.replies[i], nil
}

func TestMachine_NameStep(t *testing.T) {
	proc := &scriptedProcessor{replies: []*models.TextProcessResponse{{
		Response:      "Nice to meet you, John Doe! How old are you?",
		ExtractedData: models.FieldUpdate{Name: models.Ptr("John Doe")},
		NextStep:      models.StepAge,
	}}}
	m := NewMachine(proc)

	if _, err := m.Process(context.Background(), "My name is John Doe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := m.Data()
	if models.Str(d.Name) != "John Doe" {
		t.Errorf("expected name John Doe, got %q", models.Str(d.Name))
	}
	if d.CurrentStep != models.StepAge {
		t.Errorf("expected step age, got %s", d.CurrentStep)
	}
	if proc.sent[0].CurrentStep != models.StepName {
		t.Errorf("expected first request at step name, got %s", proc.sent[0].CurrentStep)
	}
}

func TestMachine_StepAlwaysFollowsServer(t *testing.T) {
	// The server may repeat, skip or go back; the machine must follow.
	steps := []models.Step{
		models.StepName, models.StepGender, models.StepAge,
		models.StepSummary, models.StepSymptoms, models.StepComplete,
	}
	proc := &scriptedProcessor{}
	for _, st := range steps {
		proc.replies = append(proc.replies, &models.TextProcessResponse{Response: "ok", NextStep: st})
	}
	m := NewMachine(proc)

	for i, want := range steps {
		if _, err := m.Process(context.Background(), "answer"); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if got := m.Step(); got != want {
			t.Fatalf("turn %d: expected step %s, got %s", i, want, got)
		}
	}
}

func TestMachine_MergeIsShallow(t *testing.T) {
	proc := &scriptedProcessor{replies: []*models.TextProcessResponse{
		{ExtractedData: models.FieldUpdate{Name: models.Ptr("Jane"), Age: models.Ptr(40)}, NextStep: models.StepGender},
		{ExtractedData: models.FieldUpdate{Age: models.Ptr(41)}, NextStep: models.StepGender},
	}}
	m := NewMachine(proc)
	_, _ = m.Process(context.Background(), "Jane, 40")
	_, _ = m.Process(context.Background(), "actually 41")

	d := m.Data()
	if models.Str(d.Name) != "Jane" || d.Age == nil || *d.Age != 41 {
		t.Errorf("unexpected data %+v", d)
	}
}

func TestMachine_ErrorLeavesStateUnchanged(t *testing.T) {
	proc := &scriptedProcessor{
		replies: []*models.TextProcessResponse{
			{ExtractedData: models.FieldUpdate{Name: models.Ptr("Jane")}, NextStep: models.StepAge},
			nil,
		},
		errs: []error{nil, errors.New("connection refused")},
	}
	m := NewMachine(proc)
	_, _ = m.Process(context.Background(), "Jane")
	before := m.Data()

	if _, err := m.Process(context.Background(), "40"); err == nil {
		t.Fatal("expected error")
	}
	after := m.Data()
	if after.CurrentStep != before.CurrentStep || after.Age != nil || models.Str(after.Name) != "Jane" {
		t.Errorf("state changed on error: before %+v after %+v", before, after)
	}
}

func TestMachine_MissingNextStep(t *testing.T) {
	proc := &scriptedProcessor{replies: []*models.TextProcessResponse{
		{ExtractedData: models.FieldUpdate{Name: models.Ptr("Jane")}},
	}}
	m := NewMachine(proc)
	if _, err := m.Process(context.Background(), "Jane"); !errors.Is(err, ErrNoNextStep) {
		t.Fatalf("expected ErrNoNextStep, got %v", err)
	}
	if m.Data().Name != nil {
		t.Error("expected no merge without a next step")
	}
}

func TestMachine_Submission(t *testing.T) {
	m := NewMachine(&scriptedProcessor{})
	_, err := m.Submission()
	var inc *IncompleteError
	if !errors.As(err, &inc) || len(inc.Missing) != 5 {
		t.Fatalf("expected five missing fields, got %v", err)
	}

	gender := models.GenderFemale
	m.data = models.IntakeData{
		Name: models.Ptr("Jane"), Age: models.Ptr(34), Gender: &gender,
		Symptoms: models.Ptr("headache"), Duration: models.Ptr("2 days"),
		CurrentStep: models.StepSummary,
	}
	p, err := m.Submission()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Jane" || p.Age != 34 || p.Gender != models.GenderFemale || p.Allergies != nil {
		t.Errorf("unexpected submission %+v", p)
	}
}
