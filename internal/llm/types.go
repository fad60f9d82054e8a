// Package llm holds the clients for the text-generation services a run can
// talk to. Every client makes a single attempt per call; callers decide what
// a failure means.
package llm

import (
	"context"
	"errors"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMissingAPIKey is returned when a provider that needs a credential has none.
var ErrMissingAPIKey = errors.New("LLM api_key is required")

// Message represents a role-tagged chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one generation call: the messages plus sampling parameters.
// Zero Temperature and MaxTokens mean "provider default".
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Generator returns a single completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Settings selects and configures a provider.
type Settings struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	APIFormat string
}

// NewGenerator builds the client for s.Provider. "gemini" goes through the
// genai SDK; everything else uses the HTTP chat client.
func NewGenerator(ctx context.Context, s Settings) (Generator, error) {
	if s.Provider == "gemini" {
		return NewGeminiClient(ctx, s.APIKey, WithGeminiModel(s.Model), WithGeminiBaseURL(s.BaseURL))
	}
	return NewClient(s.Provider, s.APIKey,
		WithBaseURL(s.BaseURL),
		WithModel(s.Model),
		WithAPIFormat(s.APIFormat),
	)
}
