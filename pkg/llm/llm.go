// Package llm abstracts the completion and embedding backends used by the
// extraction, retrieval and check code.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// CallOptions tune a single completion.
type CallOptions struct {
	System string
	// Temperature zero leaves the backend's default in place.
	Temperature float64
	MaxTokens   int
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts CallOptions) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> reasoning blocks emitted by
// reasoning models. An unterminated block drops everything after the tag.
func StripThinking(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	if i := strings.Index(s, "<think>"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
