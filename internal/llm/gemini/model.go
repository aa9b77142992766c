// Package gemini adapts a langchaingo Google AI model to llm.Completer.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/joseph-ayodele/job-intake/internal/llm"
)

// Completer calls a langchaingo llms.Model.
type Completer struct {
	model        llms.Model
	temperatures llm.Temperatures
}

var _ llm.Completer = (*Completer)(nil)

// New wraps an existing langchaingo model.
func New(m llms.Model, temps llm.Temperatures) *Completer {
	if temps == (llm.Temperatures{}) {
		temps = llm.DefaultTemperatures()
	}
	return &Completer{model: m, temperatures: temps}
}

// NewGoogleAI builds a Gemini client for apiKey and modelName.
func NewGoogleAI(ctx context.Context, apiKey, modelName string, temps llm.Temperatures) (*Completer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return New(m, temps), nil
}

func (c *Completer) Complete(ctx context.Context, mode llm.Mode, msgs []llm.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(float64(c.temperatures.For(mode))),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("gemini generate: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
