package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/echo/audiocapture"
	"go.aimuz.me/echo/config"
	"go.aimuz.me/echo/history"
	"go.aimuz.me/echo/hotkey"
	"go.aimuz.me/echo/internal/types"
	"go.aimuz.me/echo/session"
	"go.aimuz.me/echo/stt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// mockCapturer hands out recordings that flush one chunk when stopped.
type mockCapturer struct {
	mu     sync.Mutex
	starts int
}

func (c *mockCapturer) Start(_ context.Context, sink audiocapture.Sink) (audiocapture.Recording, error) {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	return &mockRecording{sink: sink}, nil
}

func (c *mockCapturer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

type mockRecording struct {
	sink audiocapture.Sink
	once sync.Once
}

func (r *mockRecording) Stop() {
	r.once.Do(func() {
		go func() {
			r.sink.Chunk([]byte("OggS-fake-audio"))
			r.sink.Flushed(nil)
		}()
	})
}

func (r *mockRecording) MediaType() string { return audiocapture.MediaTypeOgg }

type mockCopier struct {
	mu     sync.Mutex
	copied []types.TranscriptionResult
	done   chan struct{}
}

func newMockCopier() *mockCopier {
	return &mockCopier{done: make(chan struct{}, 8)}
}

func (c *mockCopier) Copy(_ context.Context, r types.TranscriptionResult) error {
	c.mu.Lock()
	c.copied = append(c.copied, r)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

// groqServer accepts "good" for validation and the stored key for
// transcription.
type groqServer struct {
	storedKey string

	mu   sync.Mutex
	auth []string
}

func (g *groqServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	g.mu.Lock()
	g.auth = append(g.auth, auth)
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/models"):
		if auth != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"Invalid API Key"}}`)
			return
		}
		io.WriteString(w, `{"object":"list","data":[]}`)
	case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
		if auth != "Bearer "+g.storedKey {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"Invalid API Key"}}`)
			return
		}
		io.WriteString(w, `{"text":"The quick brown fox jumps over the lazy dog and keeps on running."}`)
	default:
		http.NotFound(w, r)
	}
}

// mockKeys stands in for the global keyboard hook.
type mockKeys struct {
	mu     sync.Mutex
	toggle func()
	listen func(hotkey.KeyEvent)
}

const pushToTalkCode = 105

func (k *mockKeys) RegisterToggle(_ []string, fn func()) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.toggle = fn
	return nil
}

func (k *mockKeys) ResolveKey(string) (hotkey.Key, error) {
	return hotkey.Key{Code: pushToTalkCode}, nil
}

func (k *mockKeys) Listen(fn func(hotkey.KeyEvent)) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.listen = fn
	return nil
}

func (k *mockKeys) Close() error { return nil }

func (k *mockKeys) press(down bool) {
	k.mu.Lock()
	fn := k.listen
	k.mu.Unlock()
	fn(hotkey.KeyEvent{Keycode: pushToTalkCode, Down: down})
}

func (k *mockKeys) typeToggle() {
	k.mu.Lock()
	fn := k.toggle
	k.mu.Unlock()
	fn()
}

type fixture struct {
	svc      *Service
	capturer *mockCapturer
	copier   *mockCopier
	server   *groqServer
	keys     *mockKeys
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gs := &groqServer{storedKey: "stored"}
	srv := httptest.NewServer(gs)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg, err := config.LoadFrom(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := cfg.SetAPIKey("stored"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	client, err := stt.New(stt.Config{
		Keys:       cfg,
		BaseURL:    srv.URL + "/openai/v1/",
		TempDir:    filepath.Join(dir, "tmp"),
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("stt.New: %v", err)
	}

	store, err := history.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}

	f := &fixture{
		svc:      New("test", cfg),
		capturer: &mockCapturer{},
		copier:   newMockCopier(),
		server:   gs,
		keys:     &mockKeys{},
		cfg:      cfg,
	}
	f.svc.notifier = func(string) {}
	f.svc.start(components{
		cfg:      cfg,
		capturer: f.capturer,
		client:   client,
		copier:   f.copier,
		history:  store,
		hotkeys:  f.keys,
	})
	t.Cleanup(f.svc.Shutdown)
	return f
}

func (f *fixture) waitState(t *testing.T, want string) SessionStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := f.svc.GetStatus()
		if st.State == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %q, want %q", st.State, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fixture) waitCopied(t *testing.T) {
	t.Helper()
	select {
	case <-f.copier.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for copy")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestValidateAPIKeyLeavesSessionAlone(t *testing.T) {
	f := newFixture(t)

	f.svc.ToggleRecording()
	before := f.waitState(t, "recording")

	tests := []struct {
		key       string
		wantValid bool
		wantError string
	}{
		{"bad", false, stt.ReasonUnauthorized},
		{"good", true, ""},
		{"   ", false, stt.ReasonEmpty},
	}
	for _, tt := range tests {
		v := f.svc.ValidateAPIKey(tt.key)
		if v.Valid != tt.wantValid || v.Error != tt.wantError {
			t.Errorf("ValidateAPIKey(%q) = %+v, want valid=%v error=%q", tt.key, v, tt.wantValid, tt.wantError)
		}
	}

	after := f.svc.GetStatus()
	if after.State != before.State {
		t.Errorf("state changed from %q to %q", before.State, after.State)
	}
	if n := f.capturer.count(); n != 1 {
		t.Errorf("capture starts = %d, want 1", n)
	}
	if got := f.cfg.APIKey(); got != "stored" {
		t.Errorf("stored key = %q, validation must not replace it", got)
	}

	// The recording still completes with the stored key.
	f.svc.ToggleRecording()
	f.waitCopied(t)

	f.server.mu.Lock()
	last := f.server.auth[len(f.server.auth)-1]
	f.server.mu.Unlock()
	if last != "Bearer stored" {
		t.Errorf("transcription auth = %q, want stored key", last)
	}
}

func TestDictationCycleFlashesCopied(t *testing.T) {
	f := newFixture(t)

	f.svc.ToggleRecording()
	f.waitState(t, "recording")
	f.svc.ToggleRecording()
	f.waitCopied(t)

	st := f.waitState(t, "idle")
	if st.Indicator.Display != "copied" && st.Indicator.Display != "idle" {
		t.Errorf("indicator = %q, want copied flash", st.Indicator.Display)
	}

	f.copier.mu.Lock()
	defer f.copier.mu.Unlock()
	if len(f.copier.copied) != 1 {
		t.Fatalf("copies = %d, want 1", len(f.copier.copied))
	}
	if got := f.copier.copied[0].Language; got != "en" {
		t.Errorf("language = %q, want en", got)
	}
}

func TestPushToTalkSignals(t *testing.T) {
	f := newFixture(t)

	f.keys.press(true)
	f.waitState(t, "recording")

	// Auto-repeat while held is ignored.
	f.keys.press(true)
	f.keys.press(true)
	f.keys.press(false)
	f.waitCopied(t)
	f.waitState(t, "idle")

	if n := f.capturer.count(); n != 1 {
		t.Errorf("capture starts = %d, want 1", n)
	}
}

func TestQuickPushToTalkTapsKeepOrder(t *testing.T) {
	f := newFixture(t)

	const taps = 20
	for i := 0; i < taps; i++ {
		f.keys.press(true)
		f.keys.press(false)
		f.waitCopied(t)
		f.waitState(t, "idle")
	}

	if n := f.capturer.count(); n != taps {
		t.Errorf("capture starts = %d, want %d", n, taps)
	}
}

func TestToggleHotkey(t *testing.T) {
	f := newFixture(t)

	f.keys.typeToggle()
	f.waitState(t, "recording")
	f.keys.typeToggle()
	f.waitCopied(t)
	f.waitState(t, "idle")
}

func TestHistoryEntryLookup(t *testing.T) {
	f := newFixture(t)

	f.svc.ToggleRecording()
	f.waitState(t, "recording")
	f.svc.ToggleRecording()
	f.waitCopied(t)

	var entries []types.HistoryEntry
	deadline := time.Now().Add(2 * time.Second)
	for len(entries) == 0 {
		var err error
		entries, err = f.svc.GetHistory(10)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("history entry was not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err := f.svc.GetHistoryEntry(entries[0].ID)
	if err != nil {
		t.Fatalf("GetHistoryEntry: %v", err)
	}
	if got.Text != entries[0].Text || !strings.HasPrefix(got.Text, "The quick brown fox") {
		t.Errorf("entry text = %q", got.Text)
	}

	if _, err := f.svc.GetHistoryEntry(entries[0].ID + 100); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("missing entry err = %v, want ErrNotFound", err)
	}
}

func TestTranscribeAudioRejectsEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.TranscribeAudio(nil)
	if !errors.Is(err, session.ErrEmptyRecording) {
		t.Errorf("err = %v, want ErrEmptyRecording", err)
	}
}

func TestTranscribeAudioDoesNotCopy(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.TranscribeAudio([]byte("OggS\x00fake"))
	if err != nil {
		t.Fatalf("TranscribeAudio: %v", err)
	}
	if !strings.HasPrefix(res.Text, "The quick brown fox") {
		t.Errorf("text = %q", res.Text)
	}

	select {
	case <-f.copier.done:
		t.Error("bound transcription must not go through the session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "microphone",
			err:  fmt.Errorf("%w: device busy", session.ErrMicrophone),
			want: "Failed to access microphone. Please check permissions.",
		},
		{
			name: "missing key",
			err:  &stt.TranscribeError{Err: stt.ErrMissingAPIKey},
			want: "Groq API key not configured. Add it in Settings.",
		},
		{
			name: "empty",
			err:  session.ErrEmptyRecording,
			want: "No audio was recorded.",
		},
		{
			name: "service",
			err:  &stt.TranscribeError{Err: errors.New("503 Service Unavailable")},
			want: "failed to transcribe audio: 503 Service Unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userMessage(tt.err); got != tt.want {
				t.Errorf("userMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

type stubTranscriber struct {
	res types.TranscriptionResult
	err error
}

func (s stubTranscriber) Transcribe(context.Context, audiocapture.Payload) (types.TranscriptionResult, error) {
	return s.res, s.err
}

func TestDetectingTranscriber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "The weather is lovely today and we are going for a long walk.", "en"},
		{"fallback", types.FallbackText, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := detectingTranscriber{next: stubTranscriber{res: types.TranscriptionResult{Text: tt.text}}}
			res, err := d.Transcribe(context.Background(), audiocapture.Payload{})
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if res.Language != tt.want {
				t.Errorf("language = %q, want %q", res.Language, tt.want)
			}
		})
	}
}

func TestDetectingTranscriberPassesErrors(t *testing.T) {
	want := errors.New("boom")
	d := detectingTranscriber{next: stubTranscriber{err: want}}
	if _, err := d.Transcribe(context.Background(), audiocapture.Payload{}); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
