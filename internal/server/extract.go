package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/job-intake/internal/common"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/pipeline"
)

// MinRawTextLen is the shortest capture the extraction endpoints accept.
const MinRawTextLen = 100

type extractRequest struct {
	JobURL          string          `json:"jobUrl"`
	RawText         string          `json:"rawText"`
	ClientExtracted entity.Document `json:"clientExtracted"`
	JobID           string          `json:"jobId"`
}

type extractResponse struct {
	Status          string                            `json:"status"`
	Fields          entity.Document                   `json:"fields"`
	Confidence      map[string]entity.FieldConfidence `json:"confidence"`
	Summary         string                            `json:"summary"`
	SuccessCriteria string                            `json:"successCriteria"`
	Errors          []string                          `json:"errors"`
	RunID           string                            `json:"runId"`
}

// bindExtract decodes and checks the request, answering 400 itself on failure.
func bindExtract(c *gin.Context) (pipeline.Input, bool) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return pipeline.Input{}, false
	}
	if v := common.NewValidator().Field("raw_text", req.RawText, common.MinLength(MinRawTextLen)); v.HasErrors() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": v.ErrorMessage()})
		return pipeline.Input{}, false
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID != "" {
		if _, err := uuid.Parse(jobID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
			return pipeline.Input{}, false
		}
	}
	return pipeline.Input{
		JobID:           jobID,
		JobURL:          strings.TrimSpace(req.JobURL),
		RawText:         req.RawText,
		ClientExtracted: req.ClientExtracted,
	}, true
}

// extractStream runs the pipeline and streams every event as an SSE data frame.
func (s *Server) extractStream(c *gin.Context) {
	in, ok := bindExtract(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := common.LoggerFrom(ctx, s.logger)
	log.Info("extract.stream.start", "job_url", in.JobURL, "raw_text_len", len(in.RawText))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := c.Writer
	emit := func(ev pipeline.Event) {
		b, err := json.Marshal(ev)
		if err != nil {
			log.Error("extract.stream.encode_failed", "status", ev.Status, "error", err)
			return
		}
		// frames go out as "data: <json>"
		if err := sse.Encode(w, sse.Event{Data: " " + string(b)}); err != nil {
			log.Warn("extract.stream.write_failed", "error", err)
			return
		}
		w.Flush()
	}
	st := s.runner.Run(ctx, in, emit)
	log.Info("extract.stream.done", "run_id", st.RunID, "errors", len(st.Errors))
}

// extractSync runs the whole pipeline and answers once. Stage failures are
// reported in errors with a 200.
func (s *Server) extractSync(c *gin.Context) {
	in, ok := bindExtract(c)
	if !ok {
		return
	}
	st := s.runner.Run(c.Request.Context(), in, nil)

	fields := st.Fields()
	if fields == nil {
		fields = entity.Document{}
	}
	c.JSON(http.StatusOK, extractResponse{
		Status:          "success",
		Fields:          fields,
		Confidence:      st.Confidence(),
		Summary:         st.Summary,
		SuccessCriteria: st.SuccessCriteria,
		Errors:          st.Errors,
		RunID:           st.RunID,
	})
}
