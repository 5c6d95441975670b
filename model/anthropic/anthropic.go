// Package anthropic implements model.ChatModel using Anthropic's
// Claude API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cerina/foundry-go/model"
)

// ChatModel implements model.ChatModel for Anthropic's messages API.
// It wraps the official anthropic-sdk-go client, which handles
// concurrent requests safely.
type ChatModel struct {
	client    *anthropic.Client
	modelName string
	maxTokens int64
}

// DefaultModel is the model used when none is specified.
const DefaultModel = "claude-sonnet-4-20250514"

// NewChatModel creates a new Anthropic ChatModel.
//
// Returns an error if apiKey is empty.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: &client, modelName: modelName, maxTokens: 4096}, nil
}

// Chat implements the model.ChatModel interface.
//
// Anthropic carries the system prompt as a top-level parameter rather
// than a message, so system messages are split out before the call.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	var system []anthropic.TextBlockParam
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		System:    system,
		Messages:  params,
	})
	if err != nil {
		return model.ChatOut{}, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return model.ChatOut{
		Text:       text.String(),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}
