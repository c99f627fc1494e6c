// Package app provides the core application service for Wails bindings.
package app

import (
	"go.aimuz.me/echo/indicator"
	"go.aimuz.me/echo/session"
)

// Event names for frontend communication.
const (
	// Signals without payload, emitted by the frontend and routed to the
	// session.
	EventToggleRecording = "toggle-recording"
	EventStartRecording  = "start-recording"
	EventStopRecording   = "stop-recording"

	// EventSignal reports every routed recording signal with its source.
	// It is informational only.
	EventSignal = "signal"

	EventStatus            = "status"
	EventTranscription     = "transcription"
	EventSessionError      = "session-error"
	EventAccessibilityPerm = "accessibility-permission"
	EventOpenSettings      = "open-settings"
)

// Signal sources.
const (
	SourceHotkey   = "hotkey"
	SourceTray     = "tray"
	SourceFrontend = "frontend"
)

// Signal is the payload of EventSignal.
type Signal struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// SessionStatus is the payload of EventStatus.
type SessionStatus struct {
	State     string               `json:"state"`
	Elapsed   int                  `json:"elapsed"` // Seconds spent recording
	Error     string               `json:"error,omitempty"`
	Indicator indicator.Descriptor `json:"indicator"`
}

// SessionError is the payload of EventSessionError.
type SessionError struct {
	Message string `json:"message"`
}

func newStatus(snap session.Snapshot, transient indicator.Display) SessionStatus {
	st := SessionStatus{
		State:     snap.State.String(),
		Elapsed:   snap.Elapsed,
		Indicator: indicator.Describe(indicator.Resolve(snap.State, transient)),
	}
	if snap.LastError != nil {
		st.Error = userMessage(snap.LastError)
	}
	return st
}
