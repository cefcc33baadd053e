// Package llm drives the reply generator: prompt construction, the model
// call, and repair of its frequently malformed JSON output.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/avachat/internal/config"
)

// Generator produces raw text completions for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OllamaGenerator talks to a local Ollama server through langchaingo.
type OllamaGenerator struct {
	llm         llms.Model
	temperature float64
}

// NewOllamaGenerator builds a generator from config.
func NewOllamaGenerator(cfg config.GeneratorConfig) (*OllamaGenerator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &OllamaGenerator{
		llm:         model,
		temperature: cfg.Temperature,
	}, nil
}

// Generate runs a single-prompt completion.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.temperature),
	)
}
