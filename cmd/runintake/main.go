package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/job-intake/internal/checkpoint"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/ingest"
	"github.com/joseph-ayodele/job-intake/internal/llm/provider"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
	"github.com/joseph-ayodele/job-intake/internal/summarize"
)

// runintake runs one capture through the pipeline without a job store and
// prints every progress event as a JSON line.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	strategyName := flag.String("strategy", "", "extraction strategy (flat|comprehensive); defaults to EXTRACTION_STRATEGY")
	checkpointDSN := flag.String("checkpoints", "", "checkpoint store DSN, e.g. sqlite:file:intake.db")
	flag.Parse()
	if flag.NArg() > 1 {
		logger.Error("usage: runintake [flags] [capture.json]")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *strategyName != "" {
		cfg.Pipeline.ExtractionStrategy = *strategyName
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	capture, err := readCapture(flag.Arg(0))
	if err != nil {
		logger.Error("invalid capture", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	completer, err := provider.New(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build llm backend", "error", err)
		os.Exit(1)
	}
	strategy, err := extract.StrategyByName(cfg.Pipeline.ExtractionStrategy)
	if err != nil {
		logger.Error("invalid extraction strategy", "error", err)
		os.Exit(2)
	}
	opened, err := checkpoint.Open(ctx, *checkpointDSN, logger)
	store := checkpoint.OrNop(opened, err, logger)

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Logger:      logger,
		Extractor:   extract.NewExtractor(completer, strategy, logger),
		Summarizer:  summarize.NewGenerator(completer, logger),
		Checkpoints: store,
	})

	enc := json.NewEncoder(os.Stdout)
	st := orch.Run(ctx, pipeline.Input{
		JobURL:          capture.JobURL,
		RawText:         capture.RawText,
		ClientExtracted: capture.ClientExtracted,
	}, func(ev pipeline.Event) {
		if err := enc.Encode(ev); err != nil {
			logger.Warn("event write failed", "error", err)
		}
	})

	if len(st.Errors) > 0 {
		logger.Warn("run finished with errors", "run_id", st.RunID, "errors", st.Errors)
		os.Exit(1)
	}
	logger.Info("run finished", "run_id", st.RunID, "fields", len(st.Fields()), "summary_chars", len(st.Summary))
}

// readCapture decodes a capture from path, or from stdin when path is empty.
func readCapture(path string) (entity.Capture, error) {
	if path != "" {
		c, _, err := ingest.ReadCapture(path)
		return c, err
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return entity.Capture{}, err
	}
	var c entity.Capture
	if err := json.Unmarshal(b, &c); err != nil {
		return entity.Capture{}, err
	}
	return c, ingest.ValidateCapture(c)
}
