package ai

import (
	"context"
	"net/http"
)

// OllamaProvider talks to a self-hosted Ollama through its OpenAI-compatible
// endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

// WithOllamaModel sets the model used when a request names none.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL: baseURL,
		model:   "llama3:8b",
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	req.Temperature = 0
	return compatClient{
		name:         "ollama",
		url:          p.baseURL + "/v1/chat/completions",
		defaultModel: p.model,
		client:       p.client,
	}.complete(ctx, req)
}

func (p *OllamaProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: p.model, Name: p.model, MaxTokens: 8192, Description: "Self-hosted model via Ollama"},
	}
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	return healthGet(ctx, p.client, p.baseURL+"/api/tags", "")
}
