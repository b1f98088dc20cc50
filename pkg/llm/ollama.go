package llm

import (
	"context"
	"fmt"

	"github.com/docgraph/docgraph/pkg/ollama"
)

// Ollama serves completions and embeddings from a local Ollama server.
type Ollama struct {
	client     *ollama.Client
	model      string
	embedModel string
}

// NewOllama binds a client to an LLM model and an embedding model.
func NewOllama(client *ollama.Client, model, embedModel string) *Ollama {
	return &Ollama{client: client, model: model, embedModel: embedModel}
}

// Model returns the completion model name.
func (o *Ollama) Model() string { return o.model }

// Complete runs a non-streamed generation and strips reasoning blocks.
func (o *Ollama) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	resp, err := o.client.Generate(ctx, o.model, opts.System, prompt, &ollama.Options{
		Temperature: opts.Temperature,
		NumPredict:  opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate: %w", err)
	}
	text := StripThinking(resp.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed embeds text with the embedding model.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.client.Embed(ctx, o.embedModel, text)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrEmptyResponse
	}
	return vec, nil
}
