package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/prompt"
)

// isolate points the config at a temp dir and blanks every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("CONTACT_ENRICH_CONFIG", path)
	for _, name := range []string{
		"LLM_PROVIDER", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "PERPLEXITY_API_KEY",
		"ENRICH_VARIANT", "ENRICH_DELAY",
	} {
		t.Setenv(name, "")
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected default provider openai, got %q", cfg.LLM.Provider)
	}
	if cfg.Variant != prompt.DefaultVariant {
		t.Errorf("expected default variant, got %q", cfg.Variant)
	}
	if !cfg.WriteBOM() {
		t.Error("expected BOM on by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := isolate(t)
	data := `llm:
  provider: anthropic
  api_key: sk-ant-file
  model: claude-test
variant: profile-intro
delay: 250ms
output_bom: false
event:
  topics: ["AI", "Risk"]
  virtual: true
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "sk-ant-file" || cfg.LLM.Model != "claude-test" {
		t.Errorf("unexpected LLM config: %+v", cfg.LLM)
	}
	if cfg.Variant != "profile-intro" {
		t.Errorf("expected profile-intro, got %q", cfg.Variant)
	}
	if cfg.Delay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %s", cfg.Delay)
	}
	if cfg.WriteBOM() {
		t.Error("expected BOM disabled")
	}
	ec := cfg.EventContext()
	if len(ec.Topics) != 2 || !ec.Virtual {
		t.Errorf("unexpected event context: %+v", ec)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("llm:\n  provider: openai\n  api_key: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("ENRICH_VARIANT", "event-invite")
	t.Setenv("ENRICH_DELAY", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("expected env key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected env model, got %q", cfg.LLM.Model)
	}
	if cfg.Variant != "event-invite" {
		t.Errorf("expected env variant, got %q", cfg.Variant)
	}
	if cfg.Delay != time.Second {
		t.Errorf("expected 1s delay, got %s", cfg.Delay)
	}
}

func TestLoadProviderKeyFallback(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-openai" {
		t.Errorf("expected OPENAI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}

	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "g-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadBadDelay(t *testing.T) {
	isolate(t)
	t.Setenv("ENRICH_DELAY", "soon")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid ENRICH_DELAY")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("llm: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing key is fatal",
			cfg:     Config{LLM: LLMConfig{Provider: "openai"}, Variant: "linkedin-intro"},
			wantErr: llm.ErrMissingAPIKey,
		},
		{
			name: "ollama needs no key",
			cfg:  Config{LLM: LLMConfig{Provider: "ollama"}, Variant: "linkedin-intro"},
		},
		{
			name:    "unknown variant",
			cfg:     Config{LLM: LLMConfig{Provider: "openai", APIKey: "k"}, Variant: "nope"},
			wantErr: prompt.ErrUnknownVariant,
		},
		{
			name: "valid",
			cfg:  Config{LLM: LLMConfig{Provider: "openai", APIKey: "k"}, Variant: "profile-intro"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	neg := Config{LLM: LLMConfig{Provider: "ollama"}, Variant: "linkedin-intro", Delay: -time.Second}
	if err := neg.Validate(); err == nil {
		t.Error("expected error for negative delay")
	}
}

func TestSettings(t *testing.T) {
	cfg := Config{LLM: LLMConfig{Provider: "custom", APIKey: "k", BaseURL: "http://x", Model: "m", APIFormat: "anthropic"}}
	s := cfg.Settings()
	if s.Provider != "custom" || s.APIKey != "k" || s.BaseURL != "http://x" || s.Model != "m" || s.APIFormat != "anthropic" {
		t.Errorf("unexpected settings: %+v", s)
	}
}

func TestSaveExampleConfig(t *testing.T) {
	path := isolate(t)

	got, err := SaveExampleConfig()
	if err != nil {
		t.Fatalf("SaveExampleConfig failed: %v", err)
	}
	if got != path {
		t.Errorf("expected %q, got %q", path, got)
	}

	// The example must load cleanly.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load of example failed: %v", err)
	}
	if cfg.Variant != "linkedin-intro" {
		t.Errorf("unexpected variant from example: %q", cfg.Variant)
	}

	// Existing file is not overwritten.
	if err := os.WriteFile(path, []byte("variant: event-invite\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveExampleConfig(); err != nil {
		t.Fatalf("second SaveExampleConfig failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "variant: event-invite\n" {
		t.Error("existing config was overwritten")
	}
}

func TestLogPath(t *testing.T) {
	path := isolate(t)
	got, err := LogPath()
	if err != nil {
		t.Fatalf("LogPath failed: %v", err)
	}
	if filepath.Dir(got) != filepath.Dir(path) {
		t.Errorf("expected log next to config, got %q", got)
	}
}
