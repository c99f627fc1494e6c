// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	appName        = "echo"
	configFileName = "config.json"
	legacyFileName = "echo-settings.json"
)

// Defaults for a fresh install.
const (
	DefaultBaseURL    = "https://api.groq.com/openai/v1/"
	DefaultModel      = "whisper-large-v3-turbo"
	DefaultLanguage   = "en"
	DefaultToggle     = "CommandOrControl+Shift+R"
	DefaultPushToTalk = "fn"
	DefaultSampleRate = 48000
)

// Config represents the application configuration.
// The credential accessors are safe for concurrent use.
type Config struct {
	Groq    GroqConfig    `json:"groq"`
	Hotkey  HotkeyConfig  `json:"hotkey"`
	Audio   AudioConfig   `json:"audio"`
	History HistoryConfig `json:"history"`
	TempDir string        `json:"temp_dir,omitempty"`

	mu   sync.RWMutex
	path string
	env  Env
}

// GroqConfig holds the transcription service settings.
type GroqConfig struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

// HotkeyConfig names the global bindings.
type HotkeyConfig struct {
	Toggle     string `json:"toggle"`       // e.g. "CommandOrControl+Shift+R"
	PushToTalk string `json:"push_to_talk"` // single key name, e.g. "fn" or "f13"
}

// AudioConfig describes microphone capture.
type AudioConfig struct {
	SampleRate       int  `json:"sample_rate"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
}

// HistoryConfig toggles the transcription archive.
type HistoryConfig struct {
	Enabled bool `json:"enabled"`
}

// Env holds overrides read from the process environment (and an optional .env file).
type Env struct {
	APIKey   string `envconfig:"GROQ_API_KEY"`
	BaseURL  string `envconfig:"ECHO_BASE_URL"`
	Model    string `envconfig:"ECHO_MODEL"`
	LogLevel string `envconfig:"ECHO_LOG_LEVEL" default:"info"`
}

// LoadEnv reads environment overrides. A missing .env file is not an error.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("process env: %w", err)
	}
	return env, nil
}

// Load loads configuration from the default location and applies
// environment overrides. Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}

	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)

	return cfg, nil
}

// LoadFrom loads configuration from path. When the file is absent the
// defaults are used and a key left behind by the previous settings store
// is imported.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if key := importLegacyKey(filepath.Dir(path)); key != "" {
			cfg.Groq.APIKey = key
			if err := cfg.Save(); err != nil {
				return nil, fmt.Errorf("save imported config: %w", err)
			}
			slog.Info("imported api key from legacy settings")
		}
		return cfg, nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns the default configuration. It is not backed by a file,
// so Save fails until the caller has a path.
func Default() *Config {
	return defaultConfig()
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if c.path == "" {
		return fmt.Errorf("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// ApplyEnv records environment overrides. They take precedence over the file
// but are never written back to it.
func (c *Config) ApplyEnv(env Env) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env = env
}

// LogLevel returns the configured log level name.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.LogLevel == "" {
		return "info"
	}
	return c.env.LogLevel
}

// ─────────────────────────────────────────────────────────────────────────────
// Credential Store
// ─────────────────────────────────────────────────────────────────────────────

// APIKey returns the Groq API key, or "" when none is configured.
func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.APIKey != "" {
		return c.env.APIKey
	}
	return c.Groq.APIKey
}

// SetAPIKey stores a new Groq API key.
func (c *Config) SetAPIKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Groq.APIKey = strings.TrimSpace(key)
	return c.saveLocked()
}

// HasAPIKey reports whether a key is available.
func (c *Config) HasAPIKey() bool {
	return c.APIKey() != ""
}

// BaseURL returns the transcription API base URL.
func (c *Config) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.BaseURL != "" {
		return c.env.BaseURL
	}
	return c.Groq.BaseURL
}

// Model returns the transcription model name.
func (c *Config) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.Model != "" {
		return c.env.Model
	}
	return c.Groq.Model
}

// Helper functions

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	return &Config{
		Groq: GroqConfig{
			BaseURL:  DefaultBaseURL,
			Model:    DefaultModel,
			Language: DefaultLanguage,
		},
		Hotkey: HotkeyConfig{
			Toggle:     DefaultToggle,
			PushToTalk: DefaultPushToTalk,
		},
		Audio: AudioConfig{
			SampleRate:       DefaultSampleRate,
			EchoCancellation: true,
			NoiseSuppression: true,
		},
		History: HistoryConfig{Enabled: true},
	}
}

// applyDefaults fills fields an older or hand-edited file left empty.
func (c *Config) applyDefaults() {
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = DefaultBaseURL
	}
	if c.Groq.Model == "" {
		c.Groq.Model = DefaultModel
	}
	if c.Groq.Language == "" {
		c.Groq.Language = DefaultLanguage
	}
	if c.Hotkey.Toggle == "" {
		c.Hotkey.Toggle = DefaultToggle
	}
	if c.Hotkey.PushToTalk == "" {
		c.Hotkey.PushToTalk = DefaultPushToTalk
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
}

// legacySettings is the layout of the settings file written by earlier releases.
type legacySettings struct {
	Groq struct {
		APIKey string `json:"apiKey"`
	} `json:"groq"`
}

// importLegacyKey returns the API key stored by earlier releases in dir, if any.
func importLegacyKey(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, legacyFileName))
	if err != nil {
		return ""
	}

	var legacy legacySettings
	if err := json.Unmarshal(data, &legacy); err != nil {
		slog.Warn("parse legacy settings", "error", err)
		return ""
	}
	return strings.TrimSpace(legacy.Groq.APIKey)
}
