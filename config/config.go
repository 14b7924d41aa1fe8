// ABOUTME: Layered configuration: built-in defaults, an optional YAML file, .env, then environment variables.
// ABOUTME: CLI flags are applied by the caller on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Text-stage providers. Groq is served by the OpenAI-compatible adapter.
const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ModelConfig selects one generation stage's model.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Keys holds provider credentials. They are read from the environment only.
type Keys struct {
	Groq      string `yaml:"-"`
	Anthropic string `yaml:"-"`
	OpenAI    string `yaml:"-"`
	Gemini    string `yaml:"-"`
}

// TracingConfig controls the OTLP exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Config is the full runtime configuration.
type Config struct {
	APIURL      string `yaml:"api_url"`
	GenerateURL string `yaml:"generate_url"`
	Listen      string `yaml:"listen"`
	GroqBaseURL string `yaml:"groq_base_url"`

	Vision ModelConfig `yaml:"vision"`
	Text   ModelConfig `yaml:"text"`

	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	ImageTimeout      time.Duration `yaml:"image_timeout"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	ImageCacheTTL     time.Duration `yaml:"image_cache_ttl"`
	MaxContext        int           `yaml:"max_context"`

	AuditDB string        `yaml:"audit_db"`
	LogFile string        `yaml:"log_file"`
	Verbose bool          `yaml:"verbose"`
	Tracing TracingConfig `yaml:"tracing"`

	Keys Keys `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:            "http://localhost:8000",
		Listen:            "127.0.0.1:8787",
		Vision:            ModelConfig{Provider: ProviderGroq, Model: "meta-llama/llama-4-scout-17b-16e-instruct"},
		Text:              ModelConfig{Provider: ProviderGroq, Model: "llama-3.3-70b-versatile"},
		GenerationTimeout: 60 * time.Second,
		ImageTimeout:      15 * time.Second,
		JobTimeout:        15 * time.Second,
		ImageCacheTTL:     10 * time.Minute,
		MaxContext:        3500,
		Tracing:           TracingConfig{Endpoint: "localhost:4318"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and the
// process environment, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CALQUITY_API_URL", &c.APIURL)
	str("CALQUITY_GENERATE_URL", &c.GenerateURL)
	str("CALQUITY_LISTEN", &c.Listen)
	str("GROQ_BASE_URL", &c.GroqBaseURL)
	str("CALQUITY_VISION_MODEL", &c.Vision.Model)
	str("CALQUITY_TEXT_MODEL", &c.Text.Model)
	str("CALQUITY_TEXT_PROVIDER", &c.Text.Provider)
	str("CALQUITY_AUDIT_DB", &c.AuditDB)
	str("CALQUITY_LOG_FILE", &c.LogFile)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("GROQ_API_KEY", &c.Keys.Groq)
	str("ANTHROPIC_API_KEY", &c.Keys.Anthropic)
	str("OPENAI_API_KEY", &c.Keys.OpenAI)
	str("GEMINI_API_KEY", &c.Keys.Gemini)

	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %w", err)
		}
		c.Tracing.Enabled = enabled
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CALQUITY_GENERATION_TIMEOUT", &c.GenerationTimeout},
		{"CALQUITY_IMAGE_TIMEOUT", &c.ImageTimeout},
		{"CALQUITY_JOB_TIMEOUT", &c.JobTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if err := checkURL("api_url", c.APIURL); err != nil {
		return err
	}
	if c.GenerateURL != "" {
		if err := checkURL("generate_url", c.GenerateURL); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Text.Provider) {
	case ProviderGroq, ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("text.provider: unknown provider %q", c.Text.Provider)
	}
	if c.MaxContext <= 0 {
		return fmt.Errorf("max_context must be positive, got %d", c.MaxContext)
	}
	for name, d := range map[string]time.Duration{
		"generation_timeout": c.GenerationTimeout,
		"image_timeout":      c.ImageTimeout,
		"job_timeout":        c.JobTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	return nil
}

// TextKey returns the credential for the configured text provider.
func (c Config) TextKey() string {
	switch strings.ToLower(c.Text.Provider) {
	case ProviderAnthropic:
		return c.Keys.Anthropic
	case ProviderOpenAI:
		return c.Keys.OpenAI
	case ProviderGemini:
		return c.Keys.Gemini
	default:
		return c.Keys.Groq
	}
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s: expected an http(s) URL, got %q", name, raw)
	}
	return nil
}
