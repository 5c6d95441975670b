// Package google implements model.ChatModel using Google's Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/cerina/foundry-go/model"
)

// ChatModel implements model.ChatModel for Google's Gemini API using
// the official generative-ai-go client.
type ChatModel struct {
	client    *genai.Client
	modelName string
}

// DefaultModel is the model used when none is specified.
const DefaultModel = "gemini-1.5-flash"

// NewChatModel creates a new Gemini ChatModel.
//
// Returns an error if apiKey is empty or the client cannot be
// constructed.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("Google API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	return &ChatModel{client: client, modelName: modelName}, nil
}

// Close closes the underlying Gemini client and releases resources.
func (m *ChatModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Chat implements the model.ChatModel interface.
//
// Gemini has no first-class system role in this client; the system
// prompt is set as the model's system instruction and the remaining
// messages are concatenated into the generation request.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	gm := m.client.GenerativeModel(m.modelName)

	var prompt strings.Builder
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(msg.Content)
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return model.ChatOut{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.ChatOut{}, errors.New("no response from Gemini API")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := model.ChatOut{Text: text.String()}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
