package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/job-intake/internal/async"
	"github.com/joseph-ayodele/job-intake/internal/checkpoint"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/export"
	"github.com/joseph-ayodele/job-intake/internal/extract"
	"github.com/joseph-ayodele/job-intake/internal/ingest"
	"github.com/joseph-ayodele/job-intake/internal/llm/provider"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
	repo "github.com/joseph-ayodele/job-intake/internal/repository"
	"github.com/joseph-ayodele/job-intake/internal/server"
	"github.com/joseph-ayodele/job-intake/internal/summarize"
)

const (
	pruneInterval  = time.Hour
	healthInterval = 15 * time.Second
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}
	if cfg.Database.DSN == "" {
		logger.Error("missing DB_URL environment variable")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(gdb, pool, logger)

	if err := repo.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	jobs := repo.NewJobRepository(gdb, logger)
	index := repo.NewSearchIndex(pool, logger)
	for name, migrate := range map[string]func(context.Context) error{"jobs": jobs.Migrate, "search": index.Migrate} {
		if err := migrate(ctx); err != nil {
			logger.Error("migration failed", "schema", name, "error", err)
			os.Exit(1)
		}
	}

	var checkpoints checkpoint.Store
	if cfg.Checkpoint.DSN == cfg.Database.DSN {
		shared, err := checkpoint.NewSQLStore(ctx, repo.EntDriver(pool), logger)
		if err == nil {
			checkpoints = shared
		}
		checkpoints = checkpoint.OrNop(checkpoints, err, logger)
	} else {
		opened, err := checkpoint.Open(ctx, cfg.Checkpoint.DSN, logger)
		checkpoints = checkpoint.OrNop(opened, err, logger)
		if closer, ok := checkpoints.(interface{ Close() error }); ok {
			defer func() { _ = closer.Close() }()
		}
	}

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

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Logger:      logger,
		Extractor:   extract.NewExtractor(completer, strategy, logger),
		Summarizer:  summarize.NewGenerator(completer, logger),
		Jobs:        jobs,
		Index:       index,
		Checkpoints: checkpoints,
	})

	queue := async.NewIntakeQueue(func(ctx context.Context, in pipeline.Input) *pipeline.State {
		// workers never share the request's gorm session
		return orch.WithJobs(jobs.WithSession(ctx)).Run(ctx, in, nil)
	}, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithRunTimeout(cfg.Queue.RunTimeout),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	}()

	go checkpoint.RunPruner(ctx, checkpoints, cfg.Checkpoint.Retention, pruneInterval, logger)

	if cfg.Ingest.Dir != "" {
		inbox := ingest.NewInbox(jobs, queue, logger)
		go func() {
			if err := inbox.Watch(ctx, cfg.Ingest.Dir, cfg.Ingest.Debounce); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("capture inbox stopped", "error", err)
			}
		}()
	}

	ping := func(ctx context.Context) error { return repo.HealthCheck(ctx, pool, 2*time.Second, logger) }

	hs := server.NewHealthService(ping, logger)
	go func() {
		if err := hs.Serve(ctx, cfg.Server.GRPCHealthAddr, healthInterval); err != nil {
			logger.Error("grpc health server stopped", "error", err)
		}
	}()

	router := server.NewRouter(server.Deps{
		Logger:      logger,
		Runner:      orch,
		Jobs:        jobs,
		Queue:       queue,
		History:     export.NewService(checkpoints, logger),
		Search:      index,
		Ping:        ping,
		CORSOrigins: cfg.Server.CORSAllowOrigins,
	})
	if err := server.Serve(ctx, cfg.Server.HTTPAddr, router, logger); err != nil {
		logger.Error("http server failed", "error", err)
		stop()
		return
	}
	logger.Info("stopped")
}
