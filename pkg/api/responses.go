package api

import "github.com/delverhq/delver/pkg/service"

// ResearchResponse is returned by POST /api/v1/research.
type ResearchResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// CancelResponse is returned by POST /api/v1/research/:id/cancel.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// StatusResponse is returned by GET /api/v1/research/:id.
type StatusResponse struct {
	*service.RunState
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Runs    map[string]any `json:"runs"`
}
