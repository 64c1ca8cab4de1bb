package llm

import (
	"context"
	"time"

	"github.com/profailabs/prof-core/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// RequestFromConfig builds a request carrying the configured defaults.
func RequestFromConfig(cfg config.ChatConfig) Request {
	return Request{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
}

// NewGenerator constructs the backend selected by configuration.
func NewGenerator(cfg config.ChatConfig) (Generator, error) {
	switch cfg.Mode {
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return NewMockGenerator(), nil
	}
}
