package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("job: %w", ErrNotFound), http.StatusNotFound},
		{"invalid", Mark(errors.New("bad id"), ErrInvalidInput), http.StatusBadRequest},
		{"validation", NewValidator().Field("jobUrl", "", Required).Error(), http.StatusBadRequest},
		{"queue full", ErrQueueFull, http.StatusServiceUnavailable},
		{"queue closed", WrapError(ErrQueueClosed, "dispatch"), http.StatusServiceUnavailable},
		{"grpc invalid", status.Error(codes.InvalidArgument, "nope"), http.StatusBadRequest},
		{"grpc not found", status.Error(codes.NotFound, "nope"), http.StatusNotFound},
		{"grpc unavailable", status.Error(codes.Unavailable, "nope"), http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestMarkKeepsBothChains(t *testing.T) {
	cause := errors.New("connection reset")
	err := Mark(cause, ErrDatabase)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Mark(nil, ErrDatabase))
	assert.Nil(t, WrapError(nil, "x"))
}

func TestAppError(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "read .env", ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: read .env: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: bare", NewAppError("CONFIG_ERROR", "bare", nil).Error())
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("jobUrl", "ftp://example.com/x", Required, HTTPURL).
		Field("jobId", "not-a-uuid", UUID).
		Field("currency", "usd", CurrencyCode).
		Field("title", "ok", MinLength(2), MaxLength(10))

	require.True(t, v.HasErrors())
	require.Len(t, v.Errors(), 3)
	assert.Equal(t, "jobUrl must be an absolute http(s) URL; jobId must be a valid UUID; currency must be 3 uppercase letters (ISO 4217)", v.ErrorMessage())
	assert.ErrorIs(t, v.Error(), ErrValidation)

	ok := NewValidator().Field("jobUrl", "https://jobs.example.com/1", Required, HTTPURL)
	assert.False(t, ok.HasErrors())
	assert.NoError(t, ok.Error())
}

func TestContextIDs(t *testing.T) {
	ctx := WithJobID(WithRunID(WithRequestID(context.Background(), "req-1"), "run-1"), "job-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Equal(t, "job-1", JobIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.NotNil(t, LoggerFrom(ctx, slog.New(slog.DiscardHandler)))
}

func clearConfigEnv(t *testing.T) {
	for _, k := range []string{
		"CONFIG_FILE", "DB_URL", "CHECKPOINT_DSN", "CHECKPOINT_RETENTION", "HTTP_ADDR",
		"LLM_PROVIDER", "OPENAI_MODEL", "OPENAI_API_KEY", "GEMINI_API_KEY", "EXTRACTION_STRATEGY",
		"QUEUE_WORKERS", "CORS_ALLOW_ORIGINS", "CAPTURE_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_URL", "postgres://localhost/jobs")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "flat", cfg.Pipeline.ExtractionStrategy)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 4, cfg.Queue.Workers)
	// checkpoints fall back to the main database
	assert.Equal(t, "postgres://localhost/jobs", cfg.Checkpoint.DSN)
	assert.Zero(t, cfg.Checkpoint.Retention)

	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
  gemini_model: gemini-test
pipeline:
  extraction_strategy: comprehensive
checkpoint:
  dsn: file:checkpoints.db
  retention: 72h
queue:
  workers: 2
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUEUE_WORKERS", "8")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-test", cfg.LLM.GeminiModel)
	assert.Equal(t, "comprehensive", cfg.Pipeline.ExtractionStrategy)
	assert.Equal(t, "file:checkpoints.db", cfg.Checkpoint.DSN)
	assert.Equal(t, 72*time.Hour, cfg.Checkpoint.Retention)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate_Strategy(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "k"
	cfg.Pipeline.ExtractionStrategy = "fancy"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)

	cfg.Pipeline.ExtractionStrategy = "flat"
	cfg.Checkpoint.Retention = -time.Hour
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}
