// Package intakeflow drives a patient intake conversation against the MedQ
// API: the step machine that follows the server's declared next step, the
// chat controller that owns the transcript, voice capture and the summary
// view model.
package intakeflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/medq/medq/pkg/models"
)

// ErrNoNextStep is returned when a reply omits next_step.
var ErrNoNextStep = errors.New("intake reply has no next step")

// TextProcessor extracts fields from one utterance. *apiclient.IntakeService
// satisfies it.
type TextProcessor interface {
	ProcessText(ctx context.Context, message string, current models.IntakeData) (*models.TextProcessResponse, error)
}

// Machine holds the intake record. The current step only ever changes to
// the value the server returns; it is never computed locally.
type Machine struct {
	mu   sync.Mutex
	data models.IntakeData
	proc TextProcessor
}

func NewMachine(proc TextProcessor) *Machine {
	return &Machine{proc: proc, data: models.IntakeData{CurrentStep: models.StepName}}
}

// Data returns a copy of the record.
func (m *Machine) Data() models.IntakeData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

func (m *Machine) Step() models.Step { return m.Data().CurrentStep }

// Process sends utterance with the current record. On success the
// extracted fields are merged and the step moves to the reply's next step.
// On any error the record is left untouched.
func (m *Machine) Process(ctx context.Context, utterance string) (*models.TextProcessResponse, error) {
	current := m.Data()
	res, err := m.proc.ProcessText(ctx, utterance, current)
	if err != nil {
		return nil, fmt.Errorf("process %s step: %w", current.CurrentStep, err)
	}
	if res.NextStep == "" {
		return nil, ErrNoNextStep
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Merge(res.ExtractedData)
	m.data.CurrentStep = res.NextStep
	return res, nil
}

// Missing lists the fields a patient submission requires that are unset.
func (m *Machine) Missing() []string {
	return missingFields(m.Data())
}

func missingFields(d models.IntakeData) []string {
	var out []string
	if models.Str(d.Name) == "" {
		out = append(out, "name")
	}
	if d.Age == nil {
		out = append(out, "age")
	}
	if d.Gender == nil || *d.Gender == models.GenderUnset {
		out = append(out, "gender")
	}
	if models.Str(d.Symptoms) == "" {
		out = append(out, "symptoms")
	}
	if models.Str(d.Duration) == "" {
		out = append(out, "duration")
	}
	return out
}

// Submission builds the patient record from the collected fields.
func (m *Machine) Submission() (models.PatientCreate, error) {
	d := m.Data()
	if missing := missingFields(d); len(missing) > 0 {
		return models.PatientCreate{}, &IncompleteError{Missing: missing}
	}
	return models.PatientCreate{
		Name:        *d.Name,
		Age:         *d.Age,
		Gender:      *d.Gender,
		Symptoms:    *d.Symptoms,
		Duration:    *d.Duration,
		Medications: d.Medications,
		Allergies:   d.Allergies,
	}, nil
}

// IncompleteError names the fields still needed before submission.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("intake incomplete: missing %v", e.Missing)
}
