package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/service"
	"github.com/delverhq/delver/pkg/version"
)

// StartResearch accepts a run request and returns the session id.
func (s *Server) StartResearch(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sessionID, err := s.manager.Start(&models.RunRequest{
		Topic:            req.Topic,
		SessionID:        req.SessionID,
		Domain:           req.Domain,
		SuggestedSources: req.SuggestedSources,
		Overrides:        req.Config,
	})
	if err != nil {
		mapStartError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ResearchResponse{
		SessionID: sessionID,
		Status:    service.StatusRunning,
		Message:   "research run accepted",
	})
}

// GetResearch reports the state of a session's run, including the
// artifact bundle once finished.
func (s *Server) GetResearch(c *gin.Context) {
	state, ok := s.manager.Get(c.Param("id"))
	if !ok {
		abortError(c, http.StatusNotFound, "unknown session")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{RunState: state})
}

// CancelResearch requests cooperative cancellation of a running
// session.
func (s *Server) CancelResearch(c *gin.Context) {
	sessionID := c.Param("id")
	var req CancelRequest
	_ = c.ShouldBindJSON(&req) // body optional
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}

	if !s.manager.Cancel(sessionID, req.Reason) {
		abortError(c, http.StatusConflict, "session has no run in flight")
		return
	}
	c.JSON(http.StatusOK, CancelResponse{
		SessionID: sessionID,
		Message:   "cancellation requested",
	})
}

// CloseSession cancels any run and drops all session state.
func (s *Server) CloseSession(c *gin.Context) {
	s.manager.CloseSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// StreamEvents serves the session's event stream as SSE. A
// Last-Event-ID header (or last_event_id query parameter) resumes the
// stream after the given sequence number; buffered events with a higher
// seq are replayed first.
func (s *Server) StreamEvents(c *gin.Context) {
	sessionID := c.Param("id")

	sinceSeq := uint64(0)
	lastID := c.GetHeader("Last-Event-ID")
	if lastID == "" {
		lastID = c.Query("last_event_id")
	}
	if lastID != "" {
		parsed, err := strconv.ParseUint(lastID, 10, 64)
		if err != nil {
			abortError(c, http.StatusBadRequest, "invalid Last-Event-ID")
			return
		}
		sinceSeq = parsed
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	frames := s.bus.Stream(c.Request.Context(), sessionID, s.cfg.Server.SSETimeout(), sinceSeq)
	c.Stream(func(w io.Writer) bool {
		frame, ok := <-frames
		if !ok {
			return false
		}
		_, err := io.WriteString(w, frame)
		return err == nil
	})
}

// Health reports liveness plus run-manager counters.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Runs:    s.manager.Health(),
	})
}
