// Package models holds the wire types shared by the MedQ server and its Go
// client: intake state, patients, medical summaries, doctor accounts and the
// response envelope every endpoint returns.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Intake steps
// ---------------------------------------------------------------------------

// Step is one discrete stage of the intake conversation. The set is closed:
// decoding any value outside it fails.
type Step string

const (
	StepName        Step = "name"
	StepAge         Step = "age"
	StepGender      Step = "gender"
	StepSymptoms    Step = "symptoms"
	StepDuration    Step = "duration"
	StepMedications Step = "medications"
	StepAllergies   Step = "allergies"
	StepSummary     Step = "summary"
	StepComplete    Step = "complete"
)

// Steps lists every step in conversation order.
var Steps = []Step{
	StepName, StepAge, StepGender, StepSymptoms, StepDuration,
	StepMedications, StepAllergies, StepSummary, StepComplete,
}

// ParseStep validates s against the closed step set.
func ParseStep(s string) (Step, error) {
	for _, st := range Steps {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown intake step %q", s)
}

func (s Step) Valid() bool {
	_, err := ParseStep(string(s))
	return err == nil
}

func (s Step) String() string { return string(s) }

// IsFieldStep reports whether the step collects a single IntakeData field.
func (s Step) IsFieldStep() bool {
	return s != StepSummary && s != StepComplete && s.Valid()
}

func (s *Step) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("intake step: %w", err)
	}
	st, err := ParseStep(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// Gender is free text on the wire; the empty value means unset.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderUnset, GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) Valid() bool {
	return s == SeverityMild || s == SeverityModerate || s == SeveritySevere
}

type Role string

const (
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

// ---------------------------------------------------------------------------
// Intake
// ---------------------------------------------------------------------------

// IntakeData is the record collected over one intake conversation. Every
// field except CurrentStep is optional until the server has extracted it.
type IntakeData struct {
	Name        *string `json:"name,omitempty"`
	Age         *int    `json:"age,omitempty"`
	Gender      *Gender `json:"gender,omitempty"`
	Symptoms    *string `json:"symptoms,omitempty"`
	Duration    *string `json:"duration,omitempty"`
	Medications *string `json:"medications,omitempty"`
	Allergies   *string `json:"allergies,omitempty"`
	CurrentStep Step    `json:"current_step"`
}

// FieldUpdate is a partial IntakeData extracted from one utterance.
type FieldUpdate struct {
	Name        *string `json:"name,omitempty"`
	Age         *int    `json:"age,omitempty"`
	Gender      *Gender `json:"gender,omitempty"`
	Symptoms    *string `json:"symptoms,omitempty"`
	Duration    *string `json:"duration,omitempty"`
	Medications *string `json:"medications,omitempty"`
	Allergies   *string `json:"allergies,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u FieldUpdate) IsEmpty() bool {
	return u == FieldUpdate{}
}

// Merge applies u shallowly: every field present in u overwrites d.
func (d *IntakeData) Merge(u FieldUpdate) {
	if u.Name != nil {
		d.Name = u.Name
	}
	if u.Age != nil {
		d.Age = u.Age
	}
	if u.Gender != nil {
		d.Gender = u.Gender
	}
	if u.Symptoms != nil {
		d.Symptoms = u.Symptoms
	}
	if u.Duration != nil {
		d.Duration = u.Duration
	}
	if u.Medications != nil {
		d.Medications = u.Medications
	}
	if u.Allergies != nil {
		d.Allergies = u.Allergies
	}
}

// TextProcessRequest is the body of POST /api/intake/text.
type TextProcessRequest struct {
	Message     string     `json:"message"`
	CurrentData IntakeData `json:"current_data"`
}

// TextProcessResponse carries the reply, the extracted fields and the step
// the server wants the conversation to move to.
type TextProcessResponse struct {
	Response      string      `json:"response"`
	ExtractedData FieldUpdate `json:"extracted_data"`
	NextStep      Step        `json:"next_step"`
	IsEmergency   bool        `json:"is_emergency,omitempty"`
}

type VoiceTranscript struct {
	Transcript string `json:"transcript"`
}

// ConversationTurn is one prior message sent as medical-chat history.
// Role is "user" or "assistant".
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type MedicalChatRequest struct {
	Message             string             `json:"message"`
	ConversationHistory []ConversationTurn `json:"conversation_history,omitempty"`
}

type MedicalChatResponse struct {
	Response             string `json:"response"`
	IsEmergency          bool   `json:"is_emergency"`
	RequiresFollowup     bool   `json:"requires_followup"`
	ConversationComplete bool   `json:"conversation_complete"`
	FallbackUsed         bool   `json:"fallback_used,omitempty"`
}

// SummarizeRequest is the body of POST /api/intake/summarize. The summary
// is only returned; it is stored when it accompanies the patient submission.
type SummarizeRequest struct {
	IntakeData
}

// ---------------------------------------------------------------------------
// Summaries and patients
// ---------------------------------------------------------------------------

type StructuredData struct {
	ChiefComplaint     string   `json:"chief_complaint"`
	Symptoms           []string `json:"symptoms"`
	Duration           string   `json:"duration"`
	Severity           Severity `json:"severity"`
	AssociatedSymptoms []string `json:"associated_symptoms"`
	MedicalHistory     string   `json:"medical_history"`
	CurrentMedications []string `json:"current_medications"`
	Allergies          []string `json:"allergies"`
	Recommendations    []string `json:"recommendations"`
}

type MedicalSummary struct {
	ID             uuid.UUID      `json:"id"`
	PatientID      uuid.UUID      `json:"patient_id"`
	SummaryText    string         `json:"summary_text"`
	StructuredData StructuredData `json:"structured_data"`
	ICDCodes       []string       `json:"icd_codes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PatientCreate is the final intake submission.
type PatientCreate struct {
	Name        string  `json:"name"`
	Age         int     `json:"age"`
	Gender      Gender  `json:"gender"`
	Symptoms    string  `json:"symptoms"`
	Duration    string  `json:"duration"`
	Allergies   *string `json:"allergies,omitempty"`
	Medications *string `json:"medications,omitempty"`
	// Summary is the summary the patient reviewed. It is stored with the
	// patient in the same transaction.
	Summary *SummaryDraft `json:"summary,omitempty"`
}

// SummaryDraft is a generated summary not yet attached to a patient.
type SummaryDraft struct {
	SummaryText    string         `json:"summary_text"`
	StructuredData StructuredData `json:"structured_data"`
}

type Patient struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Age         int        `json:"age"`
	Gender      Gender     `json:"gender"`
	Symptoms    string     `json:"symptoms"`
	Duration    string     `json:"duration"`
	Allergies   *string    `json:"allergies,omitempty"`
	Medications *string    `json:"medications,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type DoctorUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string     `json:"token"`
	User  DoctorUser `json:"user"`
}

type TokenResult struct {
	Token string `json:"token"`
}

// ---------------------------------------------------------------------------
// Analytics
// ---------------------------------------------------------------------------

type SymptomCount struct {
	Symptom string `json:"symptom"`
	Count   int    `json:"count"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	TotalPatients       int            `json:"total_patients"`
	TodayPatients       int            `json:"today_patients"`
	AvgConsultationTime float64        `json:"avg_consultation_time"`
	TopSymptoms         []SymptomCount `json:"top_symptoms"`
	PatientsByDate      []DateCount    `json:"patients_by_date"`
}

// SymptomTrends maps an ISO date to symptom keyword counts for that day.
type SymptomTrends map[string]map[string]int

// IntakeEvent is published whenever a patient submission is stored.
type IntakeEvent struct {
	Type      string    `json:"type"`
	PatientID uuid.UUID `json:"patient_id"`
	Name      string    `json:"name"`
	At        time.Time `json:"at"`
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope wraps every JSON response. Error responses set Success=false and
// carry Error plus an optional Detail.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Str dereferences s, returning "" for nil.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
