package generator

import (
	"context"
	"errors"
	"fmt"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
// 纯文本与图文调用走同一接口，区别只在 Message 里是否带图片。
type LLMClient interface {
	Complete(ctx context.Context, msg Message) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// Models 持有纯文本与视觉两个客户端。
type Models struct {
	Text   LLMClient
	Vision LLMClient
}

// Select 根据是否带有可用的参考图选择客户端。
func (m Models) Select(useVision bool) LLMClient {
	if useVision && m.Vision != nil {
		return m.Vision
	}
	return m.Text
}

// NewLLM 按 provider 构建客户端。
func NewLLM(ctx context.Context, cfg *LLMSettings) (LLMClient, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	switch cfg.Provider {
	case "", "openai", "vllm":
		return NewOpenAILLMFromConfig(cfg)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAILLMFromConfig(cfg)
	case "gemini":
		return NewGeminiLLM(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
