package llm

import (
	"context"
	"errors"
	"log"
	"strings"

	"listing_scrooper/config"
)

var ErrEmptyResponse = errors.New("empty model response")

// Request is one single-turn completion.
type Request struct {
	System    string
	User      string
	JSON      bool
	MaxTokens int
}

// Client completes a prompt and returns the model's text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the client for the configured provider. It returns nil when no
// API key is set so callers can skip model extraction entirely.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		log.Println("No LLM API key configured, model extraction disabled")
		return nil, nil
	}

	switch strings.ToLower(cfg.Provider) {
	case "gemini", "google":
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return NewOpenAIClient(cfg), nil
	}
}
