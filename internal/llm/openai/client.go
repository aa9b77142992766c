package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/job-intake/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements llm.Completer with a single non-streaming chat/completions call.
func (c *Client) Complete(ctx context.Context, mode llm.Mode, msgs []llm.Message) (string, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperatures.For(mode),
		"messages":    msgs,
	}
	if c.cfg.JSONMode && mode == llm.ModePrecise {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		var he *llm.HTTPError
		if errors.As(err, &he) {
			return "", fmt.Errorf("openai status %d: %s", he.Status, he.Body)
		}
		return "", fmt.Errorf("openai http error: %w", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if cc.Error != nil {
		return "", fmt.Errorf("openai error: %s", cc.Error.Message)
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
