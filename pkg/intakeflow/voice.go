package intakeflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrRecognizerUnavailable means no speech capability is configured.
var ErrRecognizerUnavailable = errors.New("speech recognition is not available")

// CaptureKind classifies capture failures.
type CaptureKind string

const (
	CaptureNoSpeech     CaptureKind = "no-speech"
	CaptureAudioCapture CaptureKind = "audio-capture"
	CaptureNotAllowed   CaptureKind = "not-allowed"
	CaptureOther        CaptureKind = "other"
)

// Message is the text shown to the patient for this kind of failure.
func (k CaptureKind) Message() string {
	switch k {
	case CaptureNoSpeech:
		return "No speech was detected. Please try speaking again."
	case CaptureAudioCapture:
		return "No microphone was found. Please check that a microphone is connected."
	case CaptureNotAllowed:
		return "Microphone access denied. Please allow microphone access to use voice input."
	default:
		return "Speech recognition error. Please try again or type your message."
	}
}

type CaptureError struct {
	Kind CaptureKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voice capture %s: %v", e.Kind, e.Err)
	}
	return "voice capture " + string(e.Kind)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// captureError normalises any recognizer error into a *CaptureError.
func captureError(err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Kind: CaptureOther, Err: err}
}

// Recognizer turns one spoken utterance into text.
type Recognizer interface {
	Available() bool
	Recognize(ctx context.Context) (string, error)
}

type RecognizerState int

const (
	StateUnavailable RecognizerState = iota
	StateIdle
	StateListening
	StateResult
	StateError
)

func (s RecognizerState) String() string {
	switch s {
	case StateUnavailable:
		return "unavailable"
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateResult:
		return "result"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("RecognizerState(%d)", int(s))
}

// CaptureStatus is a snapshot of a VoiceCapture. Text is set in
// StateResult and Kind in StateError.
type CaptureStatus struct {
	State RecognizerState
	Text  string
	Kind  CaptureKind
}

// VoiceCapture tracks a Recognizer through
// idle -> listening -> (result | error | stopped) -> idle.
type VoiceCapture struct {
	mu     sync.Mutex
	rec    Recognizer
	status CaptureStatus
}

// NewVoiceCapture wraps rec. A nil or unavailable recognizer leaves the
// capture permanently in StateUnavailable.
func NewVoiceCapture(rec Recognizer) *VoiceCapture {
	v := &VoiceCapture{rec: rec, status: CaptureStatus{State: StateIdle}}
	if rec == nil || !rec.Available() {
		v.status.State = StateUnavailable
	}
	return v
}

func (v *VoiceCapture) Status() CaptureStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Capture records one utterance. It returns started=false without doing
// anything when a capture is already listening. Cancelling ctx is a manual
// stop: the capture returns to idle and ctx's error is returned.
func (v *VoiceCapture) Capture(ctx context.Context) (text string, started bool, err error) {
	v.mu.Lock()
	switch v.status.State {
	case StateUnavailable:
		v.mu.Unlock()
		return "", false, ErrRecognizerUnavailable
	case StateListening:
		v.mu.Unlock()
		return "", false, nil
	}
	v.status = CaptureStatus{State: StateListening}
	v.mu.Unlock()

	text, err = v.rec.Recognize(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case ctx.Err() != nil:
		v.status = CaptureStatus{State: StateIdle}
		return "", true, ctx.Err()
	case err != nil:
		ce := captureError(err)
		v.status = CaptureStatus{State: StateError, Kind: ce.Kind}
		return "", true, ce
	case strings.TrimSpace(text) == "":
		v.status = CaptureStatus{State: StateError, Kind: CaptureNoSpeech}
		return "", true, &CaptureError{Kind: CaptureNoSpeech}
	}
	v.status = CaptureStatus{State: StateResult, Text: text}
	return text, true, nil
}

// Reset returns a finished capture to idle.
func (v *VoiceCapture) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status.State != StateUnavailable && v.status.State != StateListening {
		v.status = CaptureStatus{State: StateIdle}
	}
}

// Transcriber uploads audio for speech-to-text. *apiclient.IntakeService
// satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// AudioSource yields one recording.
type AudioSource interface {
	Record(ctx context.Context) (filename string, audio io.ReadCloser, err error)
}

// ServerRecognizer records from an AudioSource and transcribes on the server.
type ServerRecognizer struct {
	source AudioSource
	api    Transcriber
}

func NewServerRecognizer(source AudioSource, api Transcriber) *ServerRecognizer {
	return &ServerRecognizer{source: source, api: api}
}

func (r *ServerRecognizer) Available() bool { return r.source != nil && r.api != nil }

func (r *ServerRecognizer) Recognize(ctx context.Context) (string, error) {
	name, audio, err := r.source.Record(ctx)
	if err != nil {
		return "", err
	}
	defer audio.Close()
	text, err := r.api.Transcribe(ctx, name, audio)
	if err != nil {
		return "", &CaptureError{Kind: CaptureOther, Err: err}
	}
	return text, nil
}

// FileAudio replays a recording from disk, e.g. one produced by an external
// recorder.
type FileAudio struct {
	Path string
}

func (f FileAudio) Record(ctx context.Context) (string, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	fh, err := os.Open(f.Path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "", nil, &CaptureError{Kind: CaptureNotAllowed, Err: err}
	case err != nil:
		return "", nil, &CaptureError{Kind: CaptureAudioCapture, Err: err}
	}
	st, err := fh.Stat()
	if err == nil && st.Size() == 0 {
		fh.Close()
		return "", nil, &CaptureError{Kind: CaptureNoSpeech}
	}
	return filepath.Base(f.Path), fh, nil
}
