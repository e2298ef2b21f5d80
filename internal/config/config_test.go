package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
	if errors.Is(err, ErrNoConfig) {
		t.Error("explicit missing path must not be ErrNoConfig; callers must not fall back")
	}
}

func TestFindConfig_SearchPathMiss(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)
	t.Setenv("HOME", dir)

	_, err := FindConfig("")
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("TAO_MODEL", "qwen3:4b")
	yml := `
models:
  ollama_url: http://gpu-box:11434
  default: ${TAO_MODEL}
agent:
  max_steps: 8
remote:
  backoff_factor: 2
classifier:
  superlative_bonus: 1.1
`
	os.WriteFile(path, []byte(yml), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Models.Default != "qwen3:4b" {
		t.Errorf("env expansion failed: model = %q", cfg.Models.Default)
	}
	if cfg.Agent.MaxSteps != 8 {
		t.Errorf("MaxSteps = %d, want 8", cfg.Agent.MaxSteps)
	}
	if cfg.Remote.MaxAttempts != 3 {
		t.Errorf("MaxAttempts default lost: %d", cfg.Remote.MaxAttempts)
	}
	if cfg.Remote.BackoffFactor != 2 {
		t.Errorf("BackoffFactor = %v, want 2", cfg.Remote.BackoffFactor)
	}
	if cfg.Embeddings.BaseURL != "http://gpu-box:11434" {
		t.Errorf("embeddings base URL should inherit ollama_url, got %q", cfg.Embeddings.BaseURL)
	}
	if cfg.Classifier.SuperlativeBonus != 1.1 {
		t.Errorf("SuperlativeBonus = %v", cfg.Classifier.SuperlativeBonus)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("agent: [unclosed"), 0600)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RemoteTimeout().Seconds() != 15 {
		t.Errorf("RemoteTimeout = %v, want 15s", cfg.RemoteTimeout())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"no model", func(c *Config) { c.Models.Default = "" }, "models.default"},
		{"hot model", func(c *Config) { c.Models.Temperature = 3 }, "temperature"},
		{"backoff below one", func(c *Config) { c.Remote.BackoffFactor = 0.5 }, "backoff_factor"},
		{"too many attempts", func(c *Config) { c.Remote.MaxAttempts = 50 }, "max_attempts"},
		{"negative rps", func(c *Config) { c.Remote.RequestsPerSecond = -1 }, "requests_per_second"},
		{"no weather url", func(c *Config) { c.Weather.BaseURL = "" }, "base_url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{" debug ", slog.LevelDebug},
		{"trace", LevelTrace},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLogLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace, "text")
	logger.Log(context.Background(), LevelTrace, "payload")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level name, got %q", buf.String())
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
