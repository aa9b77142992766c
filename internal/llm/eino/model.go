// Package eino adapts a cloudwego/eino chat model to llm.Completer.
package eino

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/joseph-ayodele/job-intake/internal/llm"
)

// Config for the eino-backed completer.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperatures llm.Temperatures
	Timeout      time.Duration
	MaxTokens    int
}

// Completer calls any eino BaseChatModel.
type Completer struct {
	model        model.BaseChatModel
	temperatures llm.Temperatures
}

var _ llm.Completer = (*Completer)(nil)

// New wraps an existing chat model.
func New(m model.BaseChatModel, temps llm.Temperatures) *Completer {
	if temps == (llm.Temperatures{}) {
		temps = llm.DefaultTemperatures()
	}
	return &Completer{model: m, temperatures: temps}
}

// NewOpenAI builds the eino-ext OpenAI chat model and wraps it.
func NewOpenAI(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4 * 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	temps := cfg.Temperatures
	if temps == (llm.Temperatures{}) {
		temps = llm.DefaultTemperatures()
	}
	m, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: &temps.Precise,
		MaxTokens:   &cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("eino openai model: %w", err)
	}
	return New(m, temps), nil
}

func (c *Completer) Complete(ctx context.Context, mode llm.Mode, msgs []llm.Message) (string, error) {
	in := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			in = append(in, schema.SystemMessage(m.Content))
		case llm.RoleAssistant:
			in = append(in, schema.AssistantMessage(m.Content, nil))
		default:
			in = append(in, schema.UserMessage(m.Content))
		}
	}
	out, err := c.model.Generate(ctx, in, model.WithTemperature(c.temperatures.For(mode)))
	if err != nil {
		return "", fmt.Errorf("eino generate: %w", err)
	}
	if out == nil {
		return "", errors.New("eino generate: empty message")
	}
	return strings.TrimSpace(out.Content), nil
}
