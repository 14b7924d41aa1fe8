// ABOUTME: Tests for layered configuration loading and validation.
// ABOUTME: Covers defaults, YAML overrides, environment precedence, and invalid settings.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 3500, cfg.MaxContext)
	assert.Equal(t, ProviderGroq, cfg.Text.Provider)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "calquity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://docs.internal:9000
text:
  provider: anthropic
  model: claude-sonnet
generation_timeout: 45s
max_context: 2000
tracing:
  enabled: true
`), 0o644))

	t.Setenv("CALQUITY_API_URL", "http://override:8000")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("CALQUITY_IMAGE_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override:8000", cfg.APIURL)
	assert.Equal(t, ProviderAnthropic, cfg.Text.Provider)
	assert.Equal(t, "claude-sonnet", cfg.Text.Model)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 5*time.Second, cfg.ImageTimeout)
	assert.Equal(t, 2000, cfg.MaxContext)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "sk-ant", cfg.TextKey())
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", cfg.Vision.Model)
}

func TestLoadDotEnvDoesNotClobber(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("GROQ_API_KEY=from-dotenv\nCALQUITY_LISTEN=0.0.0.0:9999\n"), 0o644))
	t.Setenv("CALQUITY_LISTEN", "127.0.0.1:1234")
	t.Setenv("GROQ_API_KEY", "")
	require.NoError(t, os.Unsetenv("GROQ_API_KEY"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Keys.Groq)
	assert.Equal(t, "127.0.0.1:1234", cfg.Listen)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("api_url: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("CALQUITY_JOB_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "CALQUITY_JOB_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad api url", func(c *Config) { c.APIURL = "localhost:8000" }, "api_url"},
		{"bad generate url", func(c *Config) { c.GenerateURL = "ftp://x" }, "generate_url"},
		{"unknown provider", func(c *Config) { c.Text.Provider = "cohere" }, "text.provider"},
		{"zero context", func(c *Config) { c.MaxContext = 0 }, "max_context"},
		{"zero timeout", func(c *Config) { c.ImageTimeout = 0 }, "image_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestTextKeyByProvider(t *testing.T) {
	cfg := Default()
	cfg.Keys = Keys{Groq: "g", Anthropic: "a", OpenAI: "o", Gemini: "m"}
	for provider, want := range map[string]string{
		ProviderGroq: "g", ProviderAnthropic: "a", ProviderOpenAI: "o", ProviderGemini: "m",
	} {
		cfg.Text.Provider = provider
		assert.Equal(t, want, cfg.TextKey(), provider)
	}
}
