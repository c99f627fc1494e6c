// Package stt transcribes recorded audio with an OpenAI-compatible
// speech-to-text service (Groq by default).
package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/net/http2"
	"golang.org/x/text/language"

	"go.aimuz.me/echo/audiocapture"
	"go.aimuz.me/echo/internal/types"
)

const (
	DefaultBaseURL  = "https://api.groq.com/openai/v1/"
	DefaultModel    = "whisper-large-v3-turbo"
	DefaultLanguage = "en"

	// contextPrompt biases the model toward the user's vocabulary.
	contextPrompt = "Specify context or spelling"

	requestTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("api key not configured")

// TranscribeError is returned for every failed transcription.
type TranscribeError struct {
	Err error
}

func (e *TranscribeError) Error() string {
	return "failed to transcribe audio: " + e.Err.Error()
}

func (e *TranscribeError) Unwrap() error {
	return e.Err
}

// KeySource supplies the current API key. An empty string means none.
type KeySource interface {
	APIKey() string
}

// StaticKey is a KeySource that always returns the same key.
type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

// EndpointSource supplies the base URL and model at request time, so edits
// take effect without rebuilding the Client. Empty values fall back to the
// static settings.
type EndpointSource interface {
	BaseURL() string
	Model() string
}

// Config holds configuration for Client.
type Config struct {
	Keys       KeySource
	Endpoint   EndpointSource // Optional, read on every request
	BaseURL    string       // Optional, defaults to Groq
	Model      string       // Optional, defaults to whisper-large-v3-turbo
	Language   string       // BCP 47 hint, defaults to "en"
	TempDir    string       // Optional, defaults to os.TempDir()
	HTTPClient *http.Client // Optional
}

// Client performs transcriptions. It is safe for concurrent use.
type Client struct {
	keys     KeySource
	endpoint EndpointSource
	baseURL  string
	model    string
	language string
	tempDir  string
	http     *http.Client
	now      func() time.Time
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Keys == nil {
		return nil, errors.New("key source is required")
	}

	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	lang, err := normalizeLanguage(lang)
	if err != nil {
		return nil, err
	}

	c := &Client{
		keys:     cfg.Keys,
		endpoint: cfg.Endpoint,
		baseURL:  cfg.BaseURL,
		model:    cfg.Model,
		language: lang,
		tempDir:  cfg.TempDir,
		http:     cfg.HTTPClient,
		now:      time.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.tempDir == "" {
		c.tempDir = os.TempDir()
	}
	if c.http == nil {
		c.http = newHTTPClient()
	}
	return c, nil
}

// normalizeLanguage reduces a BCP 47 tag to the ISO 639-1 code the
// service expects.
func normalizeLanguage(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", tag, err)
	}
	base, _ := t.Base()
	return base.String(), nil
}

func newHTTPClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(tr); err != nil {
		slog.Warn("configure http2", "error", err)
	}
	return &http.Client{Transport: tr, Timeout: requestTimeout}
}

func (c *Client) currentBaseURL() string {
	if c.endpoint != nil {
		if u := strings.TrimSpace(c.endpoint.BaseURL()); u != "" {
			return u
		}
	}
	return c.baseURL
}

func (c *Client) currentModel() string {
	if c.endpoint != nil {
		if m := strings.TrimSpace(c.endpoint.Model()); m != "" {
			return m
		}
	}
	return c.model
}

func (c *Client) api(key string) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(c.currentBaseURL()),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	)
}

// Transcribe uploads p and returns the recognized text. The audio is staged
// in a temporary file that is removed before Transcribe returns. Every
// error is a *TranscribeError.
func (c *Client) Transcribe(ctx context.Context, p audiocapture.Payload) (types.TranscriptionResult, error) {
	key := strings.TrimSpace(c.keys.APIKey())
	if key == "" {
		return types.TranscriptionResult{}, &TranscribeError{Err: ErrMissingAPIKey}
	}
	if p.Empty() {
		return types.TranscriptionResult{}, &TranscribeError{Err: errors.New("empty audio")}
	}

	path, err := c.writeTemp(p)
	if err != nil {
		return types.TranscriptionResult{}, &TranscribeError{Err: err}
	}
	defer c.removeTemp(path)

	f, err := os.Open(path)
	if err != nil {
		return types.TranscriptionResult{}, &TranscribeError{Err: fmt.Errorf("open audio file: %w", err)}
	}
	defer f.Close()

	client := c.api(key)
	resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModel(c.currentModel()),
		Language:               openai.String(c.language),
		Prompt:                 openai.String(contextPrompt),
		Temperature:            openai.Float(0),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	})
	if err != nil {
		return types.TranscriptionResult{}, &TranscribeError{Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = types.FallbackText
	}

	return types.TranscriptionResult{
		Text:      text,
		Timestamp: c.now().Format(types.TimestampLayout),
	}, nil
}

// writeTemp stores the payload under a unique name.
func (c *Client) writeTemp(p audiocapture.Payload) (string, error) {
	if err := os.MkdirAll(c.tempDir, 0o700); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	name := fmt.Sprintf("audio-%d-%s.%s", c.now().UnixMilli(), uuid.NewString(), p.Extension())
	path := filepath.Join(c.tempDir, name)
	if err := os.WriteFile(path, p.Data, 0o600); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}

func (c *Client) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove temp audio", "path", path, "error", err)
	}
}
