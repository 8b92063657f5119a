package api

import "github.com/delverhq/delver/pkg/models"

// ResearchRequest is the body of POST /api/v1/research.
type ResearchRequest struct {
	Topic            string            `json:"topic" binding:"required"`
	SessionID        string            `json:"session_id"`
	Domain           string            `json:"domain"`
	SuggestedSources []string          `json:"suggested_sources"`
	Config           *models.Overrides `json:"config"`
}

// CancelRequest is the optional body of POST /api/v1/research/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}
