package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultAzureAPIVersion is the Azure OpenAI REST API version used when none
// is configured.
const DefaultAzureAPIVersion = "2024-02-01"

// DefaultAzureTemperature is the service's own default sampling temperature.
// The client always serializes a temperature, so an unset one sends this.
const DefaultAzureTemperature = 1.0

// AzureOptions locate an Azure OpenAI deployment.
type AzureOptions struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	HTTPClient *http.Client
}

// Azure serves completions from an Azure OpenAI chat deployment.
type Azure struct {
	llm        *openai.LLM
	deployment string
}

// NewAzure builds a langchaingo OpenAI client in Azure mode.
func NewAzure(o AzureOptions) (*Azure, error) {
	if o.Endpoint == "" || o.APIKey == "" || o.Deployment == "" {
		return nil, errors.New("llm: azure endpoint, api key and deployment are required")
	}
	if o.APIVersion == "" {
		o.APIVersion = DefaultAzureAPIVersion
	}
	opts := []openai.Option{
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithBaseURL(o.Endpoint),
		openai.WithToken(o.APIKey),
		openai.WithModel(o.Deployment),
		openai.WithAPIVersion(o.APIVersion),
	}
	if o.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(o.HTTPClient))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: creating azure client: %w", err)
	}
	return &Azure{llm: client, deployment: o.Deployment}, nil
}

// Deployment returns the chat deployment name.
func (a *Azure) Deployment() string { return a.deployment }

// Complete sends the prompt as a single user turn, preceded by the system
// message when one is set.
func (a *Azure) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	var msgs []llms.MessageContent
	if opts.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, opts.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	temp := opts.Temperature
	if temp == 0 {
		temp = DefaultAzureTemperature
	}
	callOpts := []llms.CallOption{llms.WithTemperature(temp)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	resp, err := a.llm.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: azure completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := StripThinking(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
