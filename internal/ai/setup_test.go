package ai_test

import (
	"strings"
	"testing"

	"github.com/p-n-ai/teachmate/internal/ai"
	"github.com/p-n-ai/teachmate/internal/platform/cache"
	"github.com/p-n-ai/teachmate/internal/platform/config"
)

func TestNewRouterFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
		want string
	}{
		{"none", config.AIConfig{}, ""},
		{"openai and deepseek", config.AIConfig{
			OpenAI:   config.OpenAIConfig{APIKey: "sk-1"},
			DeepSeek: config.DeepSeekConfig{APIKey: "sk-2"},
		}, "openai,deepseek"},
		{"ollama only", config.AIConfig{Ollama: config.OllamaConfig{Enabled: true, URL: "http://localhost:11434"}}, "ollama"},
		{"ollama behind openai", config.AIConfig{
			OpenAI: config.OpenAIConfig{APIKey: "sk-1"},
			Ollama: config.OllamaConfig{Enabled: true, URL: "http://localhost:11434"},
		}, "openai,ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := ai.NewRouterFromConfig(tt.cfg)
			if got := strings.Join(router.Providers(), ","); got != tt.want {
				t.Errorf("Providers() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewBudget(t *testing.T) {
	if b := ai.NewBudget(0, nil); b != nil {
		t.Errorf("NewBudget(0) = %T, want nil", b)
	}
	if _, ok := ai.NewBudget(100, nil).(*ai.MemoryBudget); !ok {
		t.Error("NewBudget without a counter should be in memory")
	}
	var c *cache.Cache
	if _, ok := ai.NewBudget(100, c).(*ai.RedisBudget); !ok {
		t.Error("NewBudget with a counter should be shared")
	}
}
