// Package server exposes the intake pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/job-intake/internal/async"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/export"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
	"github.com/joseph-ayodele/job-intake/internal/repository"
)

const requestIDHeader = "X-Request-ID"

// Runner runs the intake pipeline in the caller's goroutine.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, emit pipeline.Emitter) *pipeline.State
}

type JobStore interface {
	FindByID(ctx context.Context, id string) (*entity.Job, error)
	SaveCapture(ctx context.Context, capture entity.Capture) (*entity.Job, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]repository.SearchHit, error)
}

type HistoryService interface {
	History(ctx context.Context, jobID string) ([]export.Run, error)
	HistoryXLSX(ctx context.Context, jobID string) ([]byte, error)
}

// Deps wires the HTTP surface. Jobs, Queue, History and Search are optional;
// routes that need a missing dependency answer 503.
type Deps struct {
	Logger      *slog.Logger
	Runner      Runner
	Jobs        JobStore
	Queue       async.Queue
	History     HistoryService
	Search      Searcher
	Ping        func(ctx context.Context) error
	CORSOrigins []string
}

type Server struct {
	logger  *slog.Logger
	runner  Runner
	jobs    JobStore
	queue   async.Queue
	history HistoryService
	search  Searcher
	ping    func(ctx context.Context) error
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		logger:  d.Logger,
		runner:  d.Runner,
		jobs:    d.Jobs,
		queue:   d.Queue,
		history: d.History,
		search:  d.Search,
		ping:    d.Ping,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	config := cors.DefaultConfig()
	if len(d.CORSOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = d.CORSOrigins
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	r.Use(cors.New(config))

	r.GET("/health", s.health)

	r.POST("/extract/stream", s.extractStream)
	r.POST("/extract", s.extractSync)

	r.POST("/jobs", s.createJob)
	r.GET("/jobs/search", s.searchJobs)

	analyze := r.Group("/analyze/:jobId")
	{
		analyze.POST("", s.analyzeJob)
		analyze.GET("", s.analysisStatus)
		analyze.GET("/history", s.analysisHistory)
		analyze.GET("/history.xlsx", s.analysisHistoryXLSX)
	}
	return r
}

// requestLogger tags each request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))

		c.Next()

		s.logger.Info("http.request",
			"request_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.ping != nil {
		if err := s.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// abortWithError answers with the status mapped from err.
func (s *Server) abortWithError(c *gin.Context, err error, msg string) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		common.LoggerFrom(c.Request.Context(), s.logger).Error("http.handler_failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (s *Server) unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

// Serve runs the HTTP server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
