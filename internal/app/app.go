// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.aimuz.me/echo/audiocapture"
	"go.aimuz.me/echo/audiocapture/device"
	"go.aimuz.me/echo/clipboard"
	"go.aimuz.me/echo/config"
	"go.aimuz.me/echo/history"
	"go.aimuz.me/echo/hotkey"
	"go.aimuz.me/echo/hotkey/gohook"
	"go.aimuz.me/echo/indicator"
	"go.aimuz.me/echo/internal/types"
	"go.aimuz.me/echo/langdetect"
	"go.aimuz.me/echo/notify"
	"go.aimuz.me/echo/session"
	"go.aimuz.me/echo/stt"

	"github.com/wailsapp/wails/v3/pkg/application"
)

const (
	flashDuration    = 1500 * time.Millisecond
	validateTimeout  = 15 * time.Second
	defaultListLimit = 50
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	cfg     *config.Config
	history *history.Store
	hotkey  *hotkey.HotkeyManager
	machine *session.Machine
	stt     *stt.Client

	// UI references - set via Init
	app     *application.App
	overlay application.Window

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	last      session.Snapshot
	transient indicator.Display
	flash     *time.Timer
	notifier  func(message string)

	// Version info (set by caller)
	version string
}

// components are the collaborators the service orchestrates.
type components struct {
	cfg      *config.Config
	capturer session.Capturer
	client   *stt.Client
	copier   session.Copier
	history  *history.Store // Optional
	hotkeys  hotkey.Backend // Optional
}

// New creates a new Service around cfg. Call Init() after Wails app is created.
func New(version string, cfg *config.Config) *Service {
	return &Service{version: version, cfg: cfg, notifier: notify.Notify}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and overlay window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, overlay application.Window) {
	s.app = app
	s.overlay = overlay

	cfg := s.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	client, err := stt.New(stt.Config{
		Keys:     cfg,
		Endpoint: cfg,
		Language: cfg.Groq.Language,
		TempDir:  cfg.TempDir,
	})
	if err != nil {
		slog.Error("init transcription client", "error", err)
		client, _ = stt.New(stt.Config{Keys: cfg, Endpoint: cfg})
	}

	constraints := audiocapture.Constraints{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         1,
		EchoCancellation: cfg.Audio.EchoCancellation,
		NoiseSuppression: cfg.Audio.NoiseSuppression,
	}

	s.start(components{
		cfg:      cfg,
		capturer: audiocapture.NewPipeline(device.NewMicrophone(), device.NewEncoder, constraints),
		client:   client,
		copier:   clipboard.New(true),
		history:  s.openHistory(cfg),
		hotkeys:  gohook.New(),
	})
}

// start wires the components together and begins serving the session.
func (s *Service) start(c components) {
	s.cfg = c.cfg
	s.stt = c.client
	s.history = c.history
	s.ctx, s.cancel = context.WithCancel(context.Background())

	opts := session.Options{
		Capturer:    c.capturer,
		Transcriber: detectingTranscriber{next: c.client},
		Copier:      c.copier,
	}
	if c.history != nil {
		opts.Recorder = c.history
	}
	s.machine = session.New(opts)
	s.machine.OnChange(s.onChange)
	s.machine.OnSettled(s.onSettled)
	go s.machine.Run(s.ctx)

	if s.app != nil {
		// Signals emitted by the frontend.
		for _, name := range []string{EventToggleRecording, EventStartRecording, EventStopRecording} {
			s.app.Event.On(name, func(e *application.CustomEvent) {
				s.dispatch(e.Name, SourceFrontend)
			})
		}
	}

	if c.hotkeys != nil {
		s.setupHotkey(c.hotkeys)
	}

	if err := s.cfg.Watch(s.ctx, func() {
		slog.Info("config reloaded", "path", s.cfg.Path(), "has_key", s.cfg.HasAPIKey(), "model", s.cfg.Model())
	}); err != nil {
		slog.Warn("watch config", "error", err)
	}
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	if s.flash != nil {
		s.flash.Stop()
	}
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}

func (s *Service) openHistory(cfg *config.Config) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for history", "error", err)
		return nil
	}

	dir := filepath.Join(configDir, "echo", "history")
	store, err := history.Open(dir)
	if err != nil {
		slog.Error("open history", "error", err)
		return nil
	}
	slog.Info("history initialized", "path", dir)
	return store
}

func (s *Service) setupHotkey(backend hotkey.Backend) {
	s.hotkey = hotkey.NewHotkeyManager(
		backend,
		hotkey.Bindings{
			Toggle:     s.cfg.Hotkey.Toggle,
			PushToTalk: s.cfg.Hotkey.PushToTalk,
		},
		hotkey.Handlers{
			Toggle: func() { s.dispatch(EventToggleRecording, SourceHotkey) },
			Start:  func() { s.dispatch(EventStartRecording, SourceHotkey) },
			Stop:   func() { s.dispatch(EventStopRecording, SourceHotkey) },
		},
	)

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// dispatch hands a recording signal straight to the session, whose mailbox
// keeps intents in the order they were raised, then reports it to the UI.
// The bus delivers each listener on its own goroutine, so signals from Go
// are never routed through it.
func (s *Service) dispatch(name, source string) {
	s.route(name)
	s.emit(EventSignal, Signal{Name: name, Source: source})
}

// route turns a recording signal into a session intent.
func (s *Service) route(name string) {
	switch name {
	case EventToggleRecording:
		s.machine.Toggle()
	case EventStartRecording:
		s.machine.Start()
	case EventStopRecording:
		s.machine.Stop()
	default:
		slog.Debug("unknown signal", "name", name)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// onChange runs on the session goroutine.
func (s *Service) onChange(snap session.Snapshot) {
	s.mu.Lock()
	s.last = snap
	if snap.State != session.StateIdle {
		s.clearFlashLocked()
	}
	st := newStatus(snap, s.transient)
	s.mu.Unlock()

	s.emit(EventStatus, st)
}

// onSettled runs on the session goroutine.
func (s *Service) onSettled(out session.Outcome) {
	if out.Err != nil {
		msg := userMessage(out.Err)
		s.emit(EventSessionError, SessionError{Message: msg})
		go s.notifier(msg)
		s.setFlash(indicator.DisplayError)
		return
	}

	slog.Info("transcription copied", "length", len(out.Result.Text), "language", out.Result.Language)
	s.emit(EventTranscription, out.Result)
	s.setFlash(indicator.DisplayCopied)
}

// setFlash shows d on the indicator until flashDuration passes or a new
// recording starts.
func (s *Service) setFlash(d indicator.Display) {
	s.mu.Lock()
	s.clearFlashLocked()
	s.transient = d

	var t *time.Timer
	t = time.AfterFunc(flashDuration, func() {
		s.mu.Lock()
		if s.flash != t {
			s.mu.Unlock()
			return
		}
		s.flash = nil
		s.transient = indicator.DisplayIdle
		st := newStatus(s.last, s.transient)
		s.mu.Unlock()

		s.emit(EventStatus, st)
	})
	s.flash = t

	st := newStatus(s.last, s.transient)
	s.mu.Unlock()

	s.emit(EventStatus, st)
}

func (s *Service) clearFlashLocked() {
	if s.flash != nil {
		s.flash.Stop()
		s.flash = nil
	}
	s.transient = indicator.DisplayIdle
}

// GetStatus returns the current session status.
func (s *Service) GetStatus() SessionStatus {
	snap := s.machine.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	return newStatus(snap, s.transient)
}

// ToggleRecording starts or stops dictation.
func (s *Service) ToggleRecording() {
	s.dispatch(EventToggleRecording, SourceTray)
}

// userMessage turns a cycle error into text for the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrMicrophone):
		return "Failed to access microphone. Please check permissions."
	case errors.Is(err, stt.ErrMissingAPIKey):
		return "Groq API key not configured. Add it in Settings."
	case errors.Is(err, session.ErrEmptyRecording):
		return "No audio was recorded."
	default:
		return err.Error()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcription
// ─────────────────────────────────────────────────────────────────────────────

// TranscribeAudio transcribes audio recorded by the frontend. It does not
// touch the dictation session.
func (s *Service) TranscribeAudio(data []byte) (types.TranscriptionResult, error) {
	p := audiocapture.Sniff(data)
	if p.Empty() {
		return types.TranscriptionResult{}, session.ErrEmptyRecording
	}
	return detectingTranscriber{next: s.stt}.Transcribe(s.ctx, p)
}

// detectingTranscriber tags results with the language of their text.
type detectingTranscriber struct {
	next session.Transcriber
}

func (d detectingTranscriber) Transcribe(ctx context.Context, p audiocapture.Payload) (types.TranscriptionResult, error) {
	res, err := d.next.Transcribe(ctx, p)
	if err != nil {
		return res, err
	}
	if res.Text != types.FallbackText {
		if code, _ := langdetect.Detect(res.Text); code != langdetect.Auto {
			res.Language = code
		}
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// ValidateAPIKey checks key against the service. It never changes the
// stored key or the session.
func (s *Service) ValidateAPIKey(key string) types.KeyValidation {
	ctx, cancel := context.WithTimeout(s.ctx, validateTimeout)
	defer cancel()
	return s.stt.ValidateKey(ctx, key)
}

// GetAPIKey returns the stored Groq API key.
func (s *Service) GetAPIKey() string {
	return s.cfg.APIKey()
}

// SetAPIKey stores a new Groq API key.
func (s *Service) SetAPIKey(key string) error {
	if err := s.cfg.SetAPIKey(key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	slog.Info("api key updated")
	return nil
}

// HasAPIKey reports whether a key is configured.
func (s *Service) HasAPIKey() bool {
	return s.cfg.HasAPIKey()
}

// GetAccessibilityPermission reports whether global key monitoring is allowed.
func (s *Service) GetAccessibilityPermission() bool {
	return hotkey.IsAccessibilityEnabled(false)
}

// OpenAccessibilitySettings prompts the user to grant key monitoring.
func (s *Service) OpenAccessibilitySettings() bool {
	return hotkey.IsAccessibilityEnabled(true)
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to limit past transcriptions, newest first.
func (s *Service) GetHistory(limit int) ([]types.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.history.List(s.ctx, limit)
}

// GetHistoryEntry returns the entry with the given id.
func (s *Service) GetHistoryEntry(id uint64) (types.HistoryEntry, error) {
	if s.history == nil {
		return types.HistoryEntry{}, history.ErrNotFound
	}
	return s.history.Get(id)
}

// DeleteHistory removes one entry.
func (s *Service) DeleteHistory(id uint64) error {
	if s.history == nil {
		return nil
	}
	return s.history.Delete(id)
}

// ClearHistory removes every entry.
func (s *Service) ClearHistory() error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear()
}
