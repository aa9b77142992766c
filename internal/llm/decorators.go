package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const (
	promptPreviewChars   = 2000
	responsePreviewChars = 3000
)

type loggingCompleter struct {
	next     Completer
	provider string
	logger   *slog.Logger
}

// WithLogging logs every completion with bounded previews of the last prompt
// message and of the response.
func WithLogging(next Completer, provider string, logger *slog.Logger) Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingCompleter{next: next, provider: provider, logger: logger}
}

func (c *loggingCompleter) Complete(ctx context.Context, mode Mode, msgs []Message) (string, error) {
	log := common.LoggerFrom(ctx, c.logger)
	start := time.Now()

	promptChars := 0
	for _, m := range msgs {
		promptChars += len(m.Content)
	}
	var last string
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].Content
	}
	log.Info("llm.complete.start",
		"provider", c.provider,
		"mode", mode.String(),
		"messages", len(msgs),
		"prompt_chars", promptChars,
	)
	log.Debug("llm.complete.prompt", "preview", utils.Preview(last, promptPreviewChars))

	out, err := c.next.Complete(ctx, mode, msgs)
	if err != nil {
		log.Error("llm.complete.error",
			"provider", c.provider,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	log.Info("llm.complete.ok",
		"provider", c.provider,
		"response_chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	log.Debug("llm.complete.response", "preview", utils.Preview(out, responsePreviewChars))
	return out, nil
}

// WithTimeout bounds every completion call. A non-positive d disables the bound.
func WithTimeout(next Completer, d time.Duration) Completer {
	if d <= 0 {
		return next
	}
	return CompleterFunc(func(ctx context.Context, mode Mode, msgs []Message) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Complete(ctx, mode, msgs)
	})
}

// WithRateLimit spaces completion calls to at most perSec per second across
// all callers. A non-positive perSec disables limiting.
func WithRateLimit(next Completer, perSec float64) Completer {
	if perSec <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), 1)
	return CompleterFunc(func(ctx context.Context, mode Mode, msgs []Message) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		return next.Complete(ctx, mode, msgs)
	})
}
