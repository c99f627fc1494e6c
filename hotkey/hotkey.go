// Package hotkey provides the global shortcuts that drive dictation: a
// toggle combination and a push-to-talk key.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Key identifies a physical key. Raw keys are matched on the platform scan
// code; the rest on the portable key code.
type Key struct {
	Code uint16
	Raw  bool
}

// KeyEvent is a press or release of a single key. Auto-repeat produces
// repeated presses.
type KeyEvent struct {
	Keycode uint16
	Rawcode uint16
	Down    bool
}

// Matches reports whether e is for k.
func (k Key) Matches(e KeyEvent) bool {
	if k.Raw {
		return e.Rawcode == k.Code
	}
	return e.Keycode == k.Code
}

// Backend delivers global keyboard input.
type Backend interface {
	// RegisterToggle calls fn each time the key combination is typed.
	RegisterToggle(keys []string, fn func()) error
	// ResolveKey maps a key name such as "fn" or "f13" to a Key.
	ResolveKey(name string) (Key, error)
	// Listen calls fn for every key press and release.
	Listen(fn func(KeyEvent)) error
	Close() error
}

// Bindings names the shortcuts, as stored in the configuration.
type Bindings struct {
	Toggle     string // e.g. "CommandOrControl+Shift+R"
	PushToTalk string // e.g. "fn"
}

// Handlers receive the recognized gestures. They must not block.
type Handlers struct {
	Toggle func()
	Start  func()
	Stop   func()
}

// HotkeyManager turns keyboard input into dictation intents.
type HotkeyManager struct {
	backend  Backend
	bindings Bindings
	handlers Handlers
	goos     string

	// checkAccess reports (and optionally prompts for) input monitoring
	// permission.
	checkAccess func(prompt bool) bool

	mu       sync.Mutex
	started  bool
	heldDown bool
	ptt      Key
	statusCb func(granted bool)
}

// NewHotkeyManager creates a manager. Nothing is registered until Start.
func NewHotkeyManager(b Backend, bindings Bindings, h Handlers) *HotkeyManager {
	return &HotkeyManager{
		backend:     b,
		bindings:    bindings,
		handlers:    h,
		goos:        currentOS,
		checkAccess: IsAccessibilityEnabled,
	}
}

// SetStatusCallback sets the callback for accessibility permission status.
func (m *HotkeyManager) SetStatusCallback(cb func(granted bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCb = cb
}

// Start registers both shortcuts. A binding that fails is logged and the
// other keeps working; Start only fails when neither could be installed.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	cb := m.statusCb
	m.mu.Unlock()

	granted := m.checkAccess(true)
	if cb != nil {
		cb(granted)
	}

	toggleErr := m.registerToggle()
	if toggleErr != nil {
		slog.Error("register toggle hotkey", "combo", m.bindings.Toggle, "error", toggleErr)
	}

	pttErr := m.registerPushToTalk()
	if pttErr != nil {
		slog.Error("register push-to-talk", "key", m.bindings.PushToTalk, "error", pttErr)
	}

	if toggleErr != nil && pttErr != nil {
		m.backend.Close()
		return errors.Join(toggleErr, pttErr)
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	slog.Info("hotkeys registered", "toggle", m.bindings.Toggle, "push_to_talk", m.bindings.PushToTalk)
	return nil
}

func (m *HotkeyManager) registerToggle() error {
	keys, err := ParseCombo(m.bindings.Toggle, m.goos)
	if err != nil {
		return err
	}
	return m.backend.RegisterToggle(keys, func() {
		if m.handlers.Toggle != nil {
			m.handlers.Toggle()
		}
	})
}

func (m *HotkeyManager) registerPushToTalk() error {
	if m.bindings.PushToTalk == "" {
		return fmt.Errorf("push-to-talk key not set")
	}
	key, err := m.backend.ResolveKey(m.bindings.PushToTalk)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.ptt = key
	m.mu.Unlock()

	return m.backend.Listen(m.onKey)
}

// onKey latches the push-to-talk key so OS auto-repeat produces one start
// and the release one stop.
func (m *HotkeyManager) onKey(e KeyEvent) {
	m.mu.Lock()
	if !m.started || !m.ptt.Matches(e) {
		m.mu.Unlock()
		return
	}

	var fire func()
	switch {
	case e.Down && !m.heldDown:
		m.heldDown = true
		fire = m.handlers.Start
	case !e.Down && m.heldDown:
		m.heldDown = false
		fire = m.handlers.Stop
	}
	m.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// Stop unregisters everything. It is safe to call more than once.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.heldDown = false
	m.mu.Unlock()

	if err := m.backend.Close(); err != nil {
		slog.Warn("close hotkey backend", "error", err)
	}
}
