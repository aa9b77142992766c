package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/job-intake/internal/async"
	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/ingest"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// createJob saves a capture and queues its analysis.
func (s *Server) createJob(c *gin.Context) {
	if s.jobs == nil || s.queue == nil {
		s.unavailable(c, "job store")
		return
	}
	var capture entity.Capture
	if err := c.ShouldBindJSON(&capture); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if err := ingest.ValidateCapture(capture); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job, err := s.jobs.SaveCapture(ctx, capture)
	if err != nil {
		s.abortWithError(c, err, "Failed to save job")
		return
	}
	input := pipeline.Input{
		JobID:           job.ID.String(),
		JobURL:          job.JobURL,
		RawText:         capture.RawText,
		ClientExtracted: capture.ClientExtracted,
	}
	if err := s.dispatch(ctx, input); err != nil {
		s.abortWithError(c, err, "Analysis queue unavailable")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID.String(), "status": "started", "job": job})
}

// dispatch queues a background run tagged with the request id.
func (s *Server) dispatch(ctx context.Context, in pipeline.Input) error {
	return s.queue.Enqueue(ctx, async.Task{
		Input:       in,
		SubmittedAt: time.Now().UTC(),
		RequestID:   common.RequestIDFromContext(ctx),
	})
}

func (s *Server) searchJobs(c *gin.Context) {
	if s.search == nil {
		s.unavailable(c, "search index")
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSearchLimit)
	}
	hits, err := s.search.Search(c.Request.Context(), q, limit)
	if err != nil {
		s.abortWithError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(hits), "hits": hits})
}
