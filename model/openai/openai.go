// Package openai implements model.ChatModel using OpenAI's API.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/cerina/foundry-go/model"
)

// ChatModel implements model.ChatModel for OpenAI's chat completions
// API. It wraps the official openai-go SDK; the underlying client is
// safe for concurrent use.
//
// Example usage:
//
//	m, err := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := m.Chat(ctx, messages)
type ChatModel struct {
	client    *openai.Client
	modelName string
}

// DefaultModel is the model used when none is specified.
const DefaultModel = "gpt-4o"

// NewChatModel creates a new OpenAI ChatModel.
//
// Returns an error if apiKey is empty; a missing credential is a
// configuration error to be reported at startup, not deferred to the
// first request.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: &client, modelName: modelName}, nil
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: toOpenAIMessages(messages),
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}
	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("no response from OpenAI API")
	}

	return model.ChatOut{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
