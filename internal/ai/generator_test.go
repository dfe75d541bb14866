package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	reply  string
	err    error
	prompt string
}

func (m *stubModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range msgs {
		for _, p := range msg.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				m.prompt = tp.Text
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func TestLangchainGenerator_Generate(t *testing.T) {
	m := &stubModel{reply: `{"intent":"greeting"}`}
	g := NewGeneratorFromModel(m, Options{Provider: ProviderOpenAI, Temperature: 0.2, MaxTokens: 64})

	out, err := g.Generate(context.Background(), "classify: hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"intent":"greeting"}` || m.prompt != "classify: hi" {
		t.Fatalf("unexpected out=%q prompt=%q", out, m.prompt)
	}
}

func TestLangchainGenerator_EmptyAndErrors(t *testing.T) {
	g := NewGeneratorFromModel(&stubModel{reply: "  "}, Options{})
	if _, err := g.Generate(context.Background(), "x"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	boom := errors.New("status 500")
	g = NewGeneratorFromModel(&stubModel{err: boom}, Options{})
	if _, err := g.Generate(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	if _, err := NewGenerator(Options{Provider: "mystery"}); err == nil {
		t.Fatalf("expected error")
	}
}
