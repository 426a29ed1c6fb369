package ai

import (
	"log/slog"

	"github.com/p-n-ai/teachmate/internal/platform/config"
)

// NewRouterFromConfig registers every configured provider. Ollama, when
// enabled next to a hosted provider, only takes summaries so the paid
// providers answer teachers.
func NewRouterFromConfig(cfg config.AIConfig) *Router {
	router := NewRouter()
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", NewOpenAIProvider(cfg.OpenAI.APIKey, WithDefaultModel(cfg.DefaultModel)))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.Ollama.Enabled {
		ollama := NewOllamaProvider(cfg.Ollama.URL)
		if router.HasProvider() {
			router.Register("ollama", ollama, TaskSummarize)
		} else {
			router.Register("ollama", ollama)
		}
	}
	if !router.HasProvider() {
		slog.Warn("no AI provider configured, the assistant will apologise")
	}
	return router
}

// NewBudget returns the daily token budget for limit: nil when unlimited,
// shared through counter when one is given, otherwise per process.
func NewBudget(limit int64, counter Counter) Budget {
	switch {
	case limit <= 0:
		return nil
	case counter != nil:
		return NewRedisBudget(counter, limit)
	default:
		return NewMemoryBudget(limit)
	}
}
