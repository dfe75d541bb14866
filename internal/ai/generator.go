// Package ai wraps the hosted language model used for classification and reply
// generation, and provides the stage executor that turns any AI failure into a
// fixed fallback value.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Options configures a LangchainGenerator.
type Options struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// LangchainGenerator calls a langchaingo model and asks for JSON output.
type LangchainGenerator struct {
	llm  llms.Model
	opts Options
}

// NewGenerator builds the provider-specific langchaingo model.
func NewGenerator(opts Options) (*LangchainGenerator, error) {
	var (
		model llms.Model
		err   error
	)
	switch opts.Provider {
	case ProviderOpenAI:
		o := []openai.Option{openai.WithModel(opts.Model), openai.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			o = append(o, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(o...)
	case ProviderAnthropic:
		o := []anthropic.Option{anthropic.WithModel(opts.Model), anthropic.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			o = append(o, anthropic.WithBaseURL(opts.BaseURL))
		}
		model, err = anthropic.New(o...)
	case ProviderOllama:
		base := opts.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithServerURL(base), ollama.WithModel(opts.Model))
	default:
		return nil, fmt.Errorf("ai: unsupported provider %q", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("ai: create %s model: %w", opts.Provider, err)
	}
	return NewGeneratorFromModel(model, opts), nil
}

// NewGeneratorFromModel wraps an existing langchaingo model.
func NewGeneratorFromModel(model llms.Model, opts Options) *LangchainGenerator {
	return &LangchainGenerator{llm: model, opts: opts}
}

func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	callOpts := []llms.CallOption{llms.WithJSONMode()}
	if g.opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(g.opts.Temperature))
	}
	if g.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.opts.MaxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
