package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/export"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
	"github.com/joseph-ayodele/job-intake/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type analyzeResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"` // started | completed | pending
	Summary string `json:"summary,omitempty"`
}

type historyResponse struct {
	JobID    string       `json:"job_id"`
	RunCount int          `json:"run_count"`
	Runs     []export.Run `json:"runs"`
}

// loadJob resolves the :jobId path parameter, answering the error itself.
func (s *Server) loadJob(c *gin.Context) (*entity.Job, bool) {
	if s.jobs == nil {
		s.unavailable(c, "job store")
		return nil, false
	}
	id := c.Param("jobId")
	if _, err := uuid.Parse(id); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return nil, false
	}
	job, err := s.jobs.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return nil, false
		}
		s.abortWithError(c, err, "Failed to load job")
		return nil, false
	}
	return job, true
}

// analyzeJob queues analysis of a saved job unless it already has a summary.
func (s *Server) analyzeJob(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	id := job.ID.String()
	if job.HasSummary() {
		c.JSON(http.StatusOK, analyzeResponse{JobID: id, Status: "completed", Summary: *job.Summary})
		return
	}
	if s.queue == nil {
		s.unavailable(c, "analysis queue")
		return
	}
	in := pipeline.Input{
		JobID:           id,
		JobURL:          job.JobURL,
		RawText:         utils.StrOrEmpty(job.ScrapedText),
		ClientExtracted: job.Document(),
	}
	if err := s.dispatch(c.Request.Context(), in); err != nil {
		s.abortWithError(c, err, "Analysis queue unavailable")
		return
	}
	common.LoggerFrom(c.Request.Context(), s.logger).Info("analysis started", "job_id", id)
	c.JSON(http.StatusOK, analyzeResponse{JobID: id, Status: "started"})
}

func (s *Server) analysisStatus(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	resp := analyzeResponse{JobID: job.ID.String(), Status: "pending"}
	if job.HasSummary() {
		resp.Status = "completed"
		resp.Summary = *job.Summary
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) analysisHistory(c *gin.Context) {
	if s.history == nil {
		s.unavailable(c, "checkpoint store")
		return
	}
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	runs, err := s.history.History(c.Request.Context(), job.ID.String())
	if err != nil {
		s.abortWithError(c, err, "Failed to load history")
		return
	}
	c.JSON(http.StatusOK, historyResponse{JobID: job.ID.String(), RunCount: len(runs), Runs: runs})
}

func (s *Server) analysisHistoryXLSX(c *gin.Context) {
	if s.history == nil {
		s.unavailable(c, "checkpoint store")
		return
	}
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	b, err := s.history.HistoryXLSX(c.Request.Context(), job.ID.String())
	if err != nil {
		s.abortWithError(c, err, "Failed to export history")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s-history.xlsx"`, job.ID))
	c.Data(http.StatusOK, xlsxContentType, b)
}
