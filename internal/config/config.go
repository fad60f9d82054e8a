package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/prompt"
)

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "openai", "perplexity", "anthropic", "gemini", "ollama", or any OpenAI-compatible
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`   // custom endpoint; defaults per provider
	Model     string `yaml:"model"`      // defaults per provider
	APIFormat string `yaml:"api_format"` // "openai" or "anthropic" for custom providers
}

// EventConfig is the default event context for runs.
type EventConfig struct {
	Topics  []string `yaml:"topics"`
	Virtual bool     `yaml:"virtual"`
}

// Config holds application configuration
type Config struct {
	LLM       LLMConfig     `yaml:"llm"`
	Variant   string        `yaml:"variant"`
	Delay     time.Duration `yaml:"delay"`
	OutputBOM *bool         `yaml:"output_bom"`
	Event     EventConfig   `yaml:"event"`
}

// keyFallbacks maps providers to the env var their own SDKs read.
var keyFallbacks = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
}

// Settings returns the generator settings derived from the LLM section.
func (c *Config) Settings() llm.Settings {
	return llm.Settings{
		Provider:  c.LLM.Provider,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		Model:     c.LLM.Model,
		APIFormat: c.LLM.APIFormat,
	}
}

// EventContext returns the configured event context.
func (c *Config) EventContext() prompt.EventContext {
	return prompt.EventContext{
		Topics:  append([]string(nil), c.Event.Topics...),
		Virtual: c.Event.Virtual,
	}
}

// WriteBOM reports whether output files get a UTF-8 byte order mark (default true).
func (c *Config) WriteBOM() bool {
	return c.OutputBOM == nil || *c.OutputBOM
}

// Validate checks what must hold before any run starts.
func (c *Config) Validate() error {
	if _, err := prompt.Lookup(c.Variant); err != nil {
		return err
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
		return fmt.Errorf("%w for provider %q: set llm.api_key in %s or the LLM_API_KEY environment variable",
			llm.ErrMissingAPIKey, c.LLM.Provider, displayPath())
	}
	return nil
}

// Load loads configuration from the config file, a .env file in the working
// directory and environment variables. Environment variables take precedence.
func Load() (*Config, error) {
	cfg := &Config{
		LLM:     LLMConfig{Provider: "openai"},
		Variant: prompt.DefaultVariant,
	}

	if err := cfg.loadFromFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath := getConfigPath()
	if configPath == "" {
		return fs.ErrNotExist
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Provider-specific key as a last resort
	if c.LLM.APIKey == "" {
		if name, ok := keyFallbacks[c.LLM.Provider]; ok {
			c.LLM.APIKey = os.Getenv(name)
		}
	}

	if variant := os.Getenv("ENRICH_VARIANT"); variant != "" {
		c.Variant = variant
	}
	if delay := os.Getenv("ENRICH_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid ENRICH_DELAY %q: %w", delay, err)
		}
		c.Delay = d
	}
	return nil
}

// getConfigPath returns the path to the config file
// Priority: $CONTACT_ENRICH_CONFIG > ~/.config/contact-enrich/config.yaml
func getConfigPath() string {
	if configPath := os.Getenv("CONTACT_ENRICH_CONFIG"); configPath != "" {
		return configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "contact-enrich", "config.yaml")
}

func displayPath() string {
	if p := getConfigPath(); p != "" {
		return p
	}
	return "config.yaml"
}

func GetConfigDir() (string, error) {
	configPath := getConfigPath()
	if configPath == "" {
		return "", fmt.Errorf("cannot determine config path")
	}
	return filepath.Dir(configPath), nil
}

// EnsureConfigDir ensures the config directory exists
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// LogPath is where the TUI writes its log file.
func LogPath() (string, error) {
	dir, err := EnsureConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "contact-enrich.log"), nil
}

// SaveExampleConfig creates an example config file and returns its path.
// An existing file is left untouched.
func SaveExampleConfig() (string, error) {
	if _, err := EnsureConfigDir(); err != nil {
		return "", err
	}
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	example := `# Contact Enrich Configuration

# LLM used to write the derived column.
# Supports any OpenAI-compatible API (openai, perplexity, ollama, openrouter...),
# anthropic, and gemini.
# Environment variables LLM_API_KEY, LLM_PROVIDER, LLM_BASE_URL, LLM_MODEL also work,
# and a .env file in the working directory is read on startup.
llm:
  provider: "openai"
  api_key: ""              # required for every provider except ollama
  # base_url: ""           # override endpoint (defaults per provider)
  # model: ""              # override model (defaults per provider)

# Prompt variant: linkedin-intro, profile-intro, event-invite
variant: "linkedin-intro"

# Optional pause between calls, e.g. "500ms" (default: none)
# delay: "500ms"

# Write a UTF-8 byte order mark so spreadsheet apps detect the encoding (default: true)
output_bom: true

# Default event context for variants that use it
event:
  topics: []
  virtual: false
`

	return configPath, os.WriteFile(configPath, []byte(example), 0600)
}
