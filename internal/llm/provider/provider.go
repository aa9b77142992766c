// Package provider builds the configured completion backend.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/llm"
	"github.com/joseph-ayodele/job-intake/internal/llm/eino"
	"github.com/joseph-ayodele/job-intake/internal/llm/gemini"
	"github.com/joseph-ayodele/job-intake/internal/llm/openai"
)

const (
	OpenAI = "openai"
	Eino   = "eino"
	Gemini = "gemini"
)

// New returns the backend named by cfg.Provider wrapped with logging, rate
// limiting and a per-call timeout.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	temps := llm.Temperatures{Precise: cfg.PreciseTemperature, Creative: cfg.CreativeTemperature}

	var (
		base llm.Completer
		name = strings.ToLower(strings.TrimSpace(cfg.Provider))
	)
	switch name {
	case "", OpenAI:
		name = OpenAI
		base = openai.NewClient(openai.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Temperatures: temps,
			Timeout:      cfg.Timeout,
			JSONMode:     true,
		}, logger)
	case Eino:
		c, err := eino.NewOpenAI(ctx, eino.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Temperatures: temps,
			Timeout:      cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = c
	case Gemini:
		c, err := gemini.NewGoogleAI(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, temps)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("unknown llm provider %q: %w", cfg.Provider, common.ErrInvalidInput)
	}

	logger.Info("llm backend ready", "provider", name, "rate_per_sec", cfg.RatePerSec, "timeout", cfg.Timeout)
	c := llm.WithTimeout(base, cfg.Timeout)
	c = llm.WithRateLimit(c, cfg.RatePerSec)
	return llm.WithLogging(c, name, logger), nil
}
