package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/config"
)

// NewChatModel 按 LLM_PROVIDER 创建对应的聊天模型。
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", cfg.Provider)
	}

	temperature := toFloat32(cfg.Temperature)
	topP := toFloat32(cfg.TopP)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.ArkBaseURL,
			Region:      cfg.ArkRegion,
			APIKey:      cfg.ArkAPIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case config.ProviderDeepSeek:
		maxTokens := 1024
		if cfg.MaxTokens != nil {
			maxTokens = *cfg.MaxTokens
		}
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		})
	case config.ProviderOllama:
		return NewOllamaChatModel(cfg.OllamaHost, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}
