// Package session implements the recording/transcription lifecycle as a
// single-owner state machine.
package session

import (
	"context"
	"errors"
	"time"

	"go.aimuz.me/echo/audiocapture"
	"go.aimuz.me/echo/internal/types"
)

var (
	// ErrMicrophone wraps failures to acquire the capture device.
	ErrMicrophone = errors.New("microphone unavailable")

	// ErrEmptyRecording is reported when a recording produced no audio.
	ErrEmptyRecording = errors.New("no audio captured")
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Intent is a user request delivered to the machine.
type Intent int

const (
	IntentToggle Intent = iota
	IntentStart
	IntentStop
)

func (i Intent) String() string {
	switch i {
	case IntentToggle:
		return "toggle"
	case IntentStart:
		return "start"
	case IntentStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	State      State
	StartedAt  time.Time // Zero unless Recording or Processing
	Elapsed    int       // Whole seconds counted while Recording
	Chunks     int       // Buffered slices of the current recording
	Generation uint64    // Increments with every recording
	LastError  error     // Outcome of the last failed cycle, cleared on the next start
}

// Outcome describes how a cycle ended.
type Outcome struct {
	Generation uint64
	Result     types.TranscriptionResult
	Duration   time.Duration
	Err        error
}

// Capturer starts recordings. Start may block while the device is acquired.
type Capturer interface {
	Start(ctx context.Context, sink audiocapture.Sink) (audiocapture.Recording, error)
}

// Transcriber converts a finalized payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, p audiocapture.Payload) (types.TranscriptionResult, error)
}

// Copier delivers a successful result to the user.
type Copier interface {
	Copy(ctx context.Context, r types.TranscriptionResult) error
}
