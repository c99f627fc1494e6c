package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Groq.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Groq.Model, DefaultModel)
	}
	if cfg.Hotkey.Toggle != DefaultToggle {
		t.Errorf("toggle = %q, want %q", cfg.Hotkey.Toggle, DefaultToggle)
	}
	if !cfg.Audio.EchoCancellation || !cfg.Audio.NoiseSuppression {
		t.Error("audio processing should default to enabled")
	}
	if cfg.HasAPIKey() {
		t.Error("fresh config should have no api key")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("fresh config should not be written, stat err = %v", err)
	}
}

func TestLoadFromImportsLegacyKey(t *testing.T) {
	dir := t.TempDir()
	legacy := map[string]any{
		"groq": map[string]any{"apiKey": "  gsk_legacy  "},
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(filepath.Join(dir, legacyFileName), data, 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	path := filepath.Join(dir, "config.json")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if got := cfg.APIKey(); got != "gsk_legacy" {
		t.Errorf("APIKey() = %q, want %q", got, "gsk_legacy")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("imported config should be saved: %v", err)
	}
}

func TestLoadFromFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"groq":{"api_key":"k"},"audio":{"sample_rate":0}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Groq.BaseURL != DefaultBaseURL {
		t.Errorf("base url = %q, want default", cfg.Groq.BaseURL)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.APIKey() != "k" {
		t.Errorf("APIKey() = %q, want %q", cfg.APIKey(), "k")
	}
}

func TestSetAPIKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := cfg.SetAPIKey(" gsk_new\n"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	reloaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.APIKey(); got != "gsk_new" {
		t.Errorf("APIKey() after reload = %q, want %q", got, "gsk_new")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := cfg.SetAPIKey("from-file"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	cfg.ApplyEnv(Env{APIKey: "from-env", Model: "whisper-large-v3"})

	if got := cfg.APIKey(); got != "from-env" {
		t.Errorf("APIKey() = %q, want env value", got)
	}
	if got := cfg.Model(); got != "whisper-large-v3" {
		t.Errorf("Model() = %q, want env value", got)
	}
	if got := cfg.BaseURL(); got != DefaultBaseURL {
		t.Errorf("BaseURL() = %q, want file value", got)
	}

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if onDisk.Groq.APIKey != "from-file" {
		t.Errorf("env key leaked to disk: %q", onDisk.Groq.APIKey)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_env")
	t.Setenv("ECHO_LOG_LEVEL", "debug")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.APIKey != "gsk_env" {
		t.Errorf("APIKey = %q, want %q", env.APIKey, "gsk_env")
	}
	if env.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", env.LogLevel, "debug")
	}
}

func TestReloadDetectsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	changed, err := cfg.reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if changed {
		t.Error("reload of an identical file should report no change")
	}

	other, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if err := other.SetAPIKey("edited-elsewhere"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	changed, err = cfg.reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !changed {
		t.Error("reload should report the edited key")
	}
	if cfg.APIKey() != "edited-elsewhere" {
		t.Errorf("APIKey() = %q after reload", cfg.APIKey())
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	if got := cfg.LogLevel(); got != "info" {
		t.Errorf("default LogLevel() = %q, want info", got)
	}

	cfg.ApplyEnv(Env{LogLevel: "debug"})
	if got := cfg.LogLevel(); got != "debug" {
		t.Errorf("LogLevel() = %q, want env value", got)
	}
}
