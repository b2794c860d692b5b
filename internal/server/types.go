package server

// ErrorResponse is the standardized error payload
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// QueueResponse mirrors the enrichment queue diagnostics
type QueueResponse struct {
	Pending int  `json:"size"`    // Tasks waiting to start
	Running int  `json:"running"` // Tasks currently in flight
	IsEmpty bool `json:"isEmpty"` // No pending and no running work
}

// BatchResponse acknowledges a manually triggered reconciliation run
type BatchResponse struct {
	Started bool `json:"started"`
}

// BlacklistResponse lists the current blacklist contents
type BlacklistResponse struct {
	Tokens []string `json:"tokens"`
	Orders []string `json:"orders"`
}
