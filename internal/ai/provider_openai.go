package ai

import (
	"context"
	"net/http"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible API such as
// DeepSeek.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	name         string
	defaultModel string
	models       []ModelInfo
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

// WithDefaultModel is used when a request names no model.
func WithDefaultModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithProviderName names the instance, e.g. "deepseek".
func WithProviderName(name string) OpenAIOption {
	return func(p *OpenAIProvider) { p.name = name }
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      defaultOpenAIBaseURL,
		client:       http.DefaultClient,
		name:         "openai",
		defaultModel: "gpt-4o-mini",
		models: []ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 128000, Description: "Most capable OpenAI model"},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 128000, Description: "Fast, affordable OpenAI model"},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDeepSeekProvider creates a provider for the DeepSeek API.
func NewDeepSeekProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, append([]OpenAIOption{
		WithBaseURL(defaultDeepSeekBaseURL),
		WithProviderName("deepseek"),
		WithDefaultModel("deepseek-chat"),
	}, opts...)...)
	if p.baseURL == defaultDeepSeekBaseURL {
		p.models = []ModelInfo{{ID: "deepseek-chat", Name: "DeepSeek Chat", MaxTokens: 64000, Description: "Low-cost general model"}}
	}
	return p
}

// Name identifies the provider instance.
func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return compatClient{
		name:         p.name,
		url:          p.baseURL + "/chat/completions",
		apiKey:       p.apiKey,
		defaultModel: p.defaultModel,
		client:       p.client,
	}.complete(ctx, req)
}

func (p *OpenAIProvider) Models() []ModelInfo {
	return p.models
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	return healthGet(ctx, p.client, p.baseURL+"/models", p.apiKey)
}
