// Package indicator maps session state to the look of the status overlay.
package indicator

import (
	"fmt"

	"go.aimuz.me/echo/session"
)

// Display is what the overlay shows.
type Display int

const (
	DisplayIdle Display = iota
	DisplayRecording
	DisplayProcessing
	DisplayError  // Transient, after a failed cycle
	DisplayCopied // Transient, after a successful cycle
)

func (d Display) String() string {
	switch d {
	case DisplayIdle:
		return "idle"
	case DisplayRecording:
		return "recording"
	case DisplayProcessing:
		return "processing"
	case DisplayError:
		return "error"
	case DisplayCopied:
		return "copied"
	default:
		return "unknown"
	}
}

// Descriptor is the visual description sent to the overlay window.
type Descriptor struct {
	Display string  `json:"display"`
	Label   string  `json:"label"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Opacity float64 `json:"opacity"`
	Color   string  `json:"color"`
	Ring    string  `json:"ring,omitempty"` // CSS box-shadow
	Pulse   bool    `json:"pulse"`          // Animated dots
}

var descriptors = map[Display]Descriptor{
	DisplayIdle:       {Label: "Idle", Width: 60, Height: 10, Opacity: 0.65, Color: "#000000"},
	DisplayRecording:  {Label: "Recording", Width: 100, Height: 25, Opacity: 1, Color: "#dc2626", Ring: "0 0 0 4px rgba(220, 38, 38, 0.15)"},
	DisplayProcessing: {Label: "Transcribing", Width: 100, Height: 25, Opacity: 1, Color: "#7829ff", Pulse: true},
	DisplayError:      {Label: "Error", Width: 100, Height: 25, Opacity: 1, Color: "#f59e0b"},
	DisplayCopied:     {Label: "Copied", Width: 100, Height: 25, Opacity: 1, Color: "#16a34a"},
}

// Describe returns the descriptor for d. Unknown values describe Idle.
func Describe(d Display) Descriptor {
	desc, ok := descriptors[d]
	if !ok {
		d = DisplayIdle
		desc = descriptors[d]
	}
	desc.Display = d.String()
	return desc
}

// FromState maps a core session state to its display.
func FromState(s session.State) Display {
	switch s {
	case session.StateIdle:
		return DisplayIdle
	case session.StateRecording:
		return DisplayRecording
	case session.StateProcessing:
		return DisplayProcessing
	default:
		panic(fmt.Sprintf("indicator: unknown session state %d", s))
	}
}

// Resolve combines the session state with a pending transient display.
// Transients only show while the session is idle.
func Resolve(s session.State, transient Display) Display {
	if s == session.StateIdle && (transient == DisplayError || transient == DisplayCopied) {
		return transient
	}
	return FromState(s)
}
