package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaChatModel 把 langchaingo 的 Ollama 客户端适配为 eino 的 BaseChatModel，
// 以便接入同一条 prompt -> model 链。
type OllamaChatModel struct {
	llm llms.Model
}

// NewOllamaChatModel connects to a local Ollama server.
func NewOllamaChatModel(serverURL, modelName string) (*OllamaChatModel, error) {
	llm, err := ollama.New(
		ollama.WithModel(modelName),
		ollama.WithServerURL(serverURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return &OllamaChatModel{llm: llm}, nil
}

// Generate implements model.BaseChatModel.
func (m *OllamaChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := m.llm.GenerateContent(ctx, toMessageContent(input), callOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("ollama generate: no response choices")
	}
	return schema.AssistantMessage(resp.Choices[0].Content, nil), nil
}

// Stream implements model.BaseChatModel by relaying langchaingo's streaming callback.
func (m *OllamaChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reader, writer := schema.Pipe[*schema.Message](16)

	callOpts := append(callOptions(opts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if closed := writer.Send(schema.AssistantMessage(string(chunk), nil), nil); closed {
			return fmt.Errorf("stream reader closed")
		}
		return nil
	}))

	go func() {
		defer writer.Close()
		if _, err := m.llm.GenerateContent(ctx, toMessageContent(input), callOpts...); err != nil {
			writer.Send(nil, fmt.Errorf("ollama stream: %w", err))
		}
	}()

	return reader, nil
}

func toMessageContent(input []*schema.Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		var role llms.ChatMessageType
		switch msg.Role {
		case schema.System:
			role = llms.ChatMessageTypeSystem
		case schema.Assistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return messages
}

func callOptions(opts []model.Option) []llms.CallOption {
	common := model.GetCommonOptions(nil, opts...)

	var callOpts []llms.CallOption
	if common.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*common.Temperature)))
	}
	if common.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*common.TopP)))
	}
	if common.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*common.MaxTokens))
	}
	return callOpts
}

var _ model.BaseChatModel = (*OllamaChatModel)(nil)
