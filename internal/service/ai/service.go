package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
)

// Service 把酒店系统提示词、历史消息与用户输入编排成 eino 链并调用模型。
type Service struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	facts     hotel.FactSheet
	rooms     []hotel.RoomTypeInfo
	streaming bool
	now       func() time.Time
	logger    *slog.Logger
}

// Options 控制 Service 行为。
type Options struct {
	Streaming bool
	Logger    *slog.Logger
}

// NewService compiles the prompt -> chat model chain.
func NewService(ctx context.Context, chatModel model.BaseChatModel, facts hotel.FactSheet, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		chain:     runnable,
		facts:     facts,
		rooms:     hotel.Catalogue(),
		streaming: opts.Streaming,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// Generate 同步生成回复，返回清理后的文本。
func (s *Service) Generate(ctx context.Context, history []chat.Message, userMessage string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := CleanResponse(response.Content)
	s.logger.Debug("[ai] generated response", "raw_length", len(response.Content), "length", len(text))
	return text, nil
}

// Stream 以流的形式返回模型输出，调用方负责关闭 reader。
func (s *Service) Stream(ctx context.Context, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	if !s.streaming {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(history, userMessage))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

// SystemPrompt returns the prompt the model currently receives.
func (s *Service) SystemPrompt() string {
	return BuildSystemPrompt(s.facts, s.rooms, s.now())
}

func (s *Service) buildChainInput(history []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  s.SystemPrompt(),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
