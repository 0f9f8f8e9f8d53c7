package ai

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOllamaBaseURL     = "http://localhost:11434/v1"

	// DefaultModel is the model content generation asks for when none is configured.
	DefaultModel = "deepseek/deepseek-r1"
)

// OpenAIProvider implements Provider for any OpenAI-compatible chat
// completions API: OpenAI itself, OpenRouter and Ollama's /v1 endpoint.
type OpenAIProvider struct {
	name    string
	model   string
	baseURL string
	headers http.Header
	client  *http.Client
	api     *openai.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.model = model
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.headers.Set(key, value)
	}
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		name:    "openai",
		model:   openai.GPT4oMini,
		headers: make(http.Header),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}

	config := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		config.BaseURL = p.baseURL
	}
	config.HTTPClient = &headerDoer{client: p.client, headers: p.headers}
	p.api = openai.NewClientWithConfig(config)
	return p
}

// NewOpenRouterProvider creates a provider for OpenRouter, which identifies
// the calling app through two extra headers.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithDefaultModel(DefaultModel),
		WithHeader("HTTP-Referer", "http://localhost:3000"),
		WithHeader("X-Title", "Knowledge Tree"),
	}, opts...)
	p := NewOpenAIProvider(apiKey, opts...)
	p.name = "openrouter"
	return p
}

// NewOllamaProvider creates a provider for a self-hosted Ollama server.
// Ollama ignores the API key.
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	opts = append([]OpenAIOption{
		WithBaseURL(baseURL),
		WithDefaultModel("llama3:8b"),
	}, opts...)
	p := NewOpenAIProvider("ollama", opts...)
	p.name = "ollama"
	return p
}

// Name identifies the backend in logs.
func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := p.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("%s chat completion: no choices in response", p.name)
	}

	return CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%s health check: %w", p.name, err)
	}
	return nil
}

// headerDoer adds fixed headers to every SDK request.
type headerDoer struct {
	client  *http.Client
	headers http.Header
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	for k, v := range d.headers {
		req.Header[k] = v
	}
	return d.client.Do(req)
}
