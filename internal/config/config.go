// Package config handles tao configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/tao/config.yaml, /etc/tao/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tao", "config.yaml"))
	}

	paths = append(paths, "/etc/tao/config.yaml")
	return paths
}

// ErrNoConfig is returned by FindConfig when no explicit path was given
// and none of the search paths exist. Callers may fall back to Default.
var ErrNoConfig = errors.New("no config file found")

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, DefaultSearchPaths())
}

// Config holds all tao configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // text or json
	Models     ModelsConfig     `yaml:"models"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Agent      AgentConfig      `yaml:"agent"`
	Remote     RemoteConfig     `yaml:"remote"`
	Weather    ServiceConfig    `yaml:"weather"`
	Geocoding  ServiceConfig    `yaml:"geocoding"`
	Data       DataConfig       `yaml:"data"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// ModelsConfig selects the chat model used by the agent loop and the
// canonical-query workflow.
type ModelsConfig struct {
	OllamaURL   string  `yaml:"ollama_url"`
	Default     string  `yaml:"default"`
	Temperature float64 `yaml:"temperature"`
	// TimeoutSec bounds a single completion. Local models on small
	// hardware can take minutes on the first call.
	TimeoutSec int `yaml:"timeout_sec"`
}

// EmbeddingsConfig defines embedding generation settings for the
// document search index.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`   // Embedding model name (e.g., nomic-embed-text)
	BaseURL string `yaml:"baseurl"` // Ollama URL (defaults to models.ollama_url)
}

// AgentConfig bounds a single TAO episode.
type AgentConfig struct {
	MaxSteps int `yaml:"max_steps"`
	TopK     int `yaml:"top_k"` // default result count for search_offices
}

// RemoteConfig controls retry behavior for the Open-Meteo services.
type RemoteConfig struct {
	MaxAttempts   int     `yaml:"max_attempts"`
	BackoffFactor float64 `yaml:"backoff_factor"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	// RequestsPerSecond caps outbound calls per service. Zero disables
	// the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ServiceConfig points at one upstream HTTP data service.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DataConfig locates the office dataset and the document index.
type DataConfig struct {
	// OfficesCSV is the office dataset. Empty uses the built-in sample.
	OfficesCSV string `yaml:"offices_csv"`
	// DocsDir holds documents indexed for search_offices.
	DocsDir string `yaml:"docs_dir"`
	// IndexDB is the SQLite file holding document embeddings.
	IndexDB string `yaml:"index_db"`
}

// ClassifierConfig overrides the intent classifier's bonus weights.
// Zero values keep the built-in defaults.
type ClassifierConfig struct {
	DomainBonus      float64 `yaml:"domain_bonus"`
	SuperlativeBonus float64 `yaml:"superlative_bonus"`
	ProfileBonus     float64 `yaml:"profile_bonus"`
	ProfilePenalty   float64 `yaml:"profile_penalty"`
	MaxConfidence    float64 `yaml:"max_confidence"`
	MaxAlternatives  int     `yaml:"max_alternatives"`
}

// Load reads configuration from a YAML file. Values missing from the
// file keep the defaults from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := defaults()
	cfg.applyDefaults()
	return cfg
}

// defaults returns the built-in values before derived fields are filled,
// so a config file can change models.ollama_url and have embeddings follow.
func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Models: ModelsConfig{
			OllamaURL:  "http://localhost:11434",
			Default:    "llama3.2",
			TimeoutSec: 300,
		},
		Embeddings: EmbeddingsConfig{
			Model: "nomic-embed-text",
		},
		Agent: AgentConfig{
			MaxSteps: 6,
			TopK:     5,
		},
		Remote: RemoteConfig{
			MaxAttempts:   3,
			BackoffFactor: 1.5,
			TimeoutSec:    15,
		},
		Weather:   ServiceConfig{BaseURL: "https://api.open-meteo.com"},
		Geocoding: ServiceConfig{BaseURL: "https://geocoding-api.open-meteo.com"},
		Data: DataConfig{
			DocsDir: "data",
			IndexDB: "data/index.db",
		},
	}
}

// applyDefaults fills fields a config file may have zeroed explicitly.
func (c *Config) applyDefaults() {
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = c.Models.OllamaURL
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 6
	}
	if c.Agent.TopK <= 0 {
		c.Agent.TopK = 5
	}
	if c.Remote.MaxAttempts <= 0 {
		c.Remote.MaxAttempts = 3
	}
	if c.Remote.BackoffFactor <= 0 {
		c.Remote.BackoffFactor = 1.5
	}
	if c.Remote.TimeoutSec <= 0 {
		c.Remote.TimeoutSec = 15
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if c.Models.OllamaURL == "" {
		return errors.New("models.ollama_url is required")
	}
	if c.Models.Default == "" {
		return errors.New("models.default is required")
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature %.2f out of range [0, 2]", c.Models.Temperature)
	}
	if c.Remote.MaxAttempts > 10 {
		return fmt.Errorf("remote.max_attempts %d is unreasonably high (max 10)", c.Remote.MaxAttempts)
	}
	if c.Remote.BackoffFactor < 1 {
		return fmt.Errorf("remote.backoff_factor %.2f must be >= 1", c.Remote.BackoffFactor)
	}
	if c.Remote.RequestsPerSecond < 0 {
		return errors.New("remote.requests_per_second must not be negative")
	}
	if c.Weather.BaseURL == "" || c.Geocoding.BaseURL == "" {
		return errors.New("weather.base_url and geocoding.base_url are required")
	}
	return nil
}

// RemoteTimeout returns the per-attempt timeout as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSec) * time.Second
}

// ModelTimeout returns the completion timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Models.TimeoutSec) * time.Second
}
