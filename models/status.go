package models

import "time"

// Viewport is the page viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SessionStatus is the per-session diagnostic record exposed over the
// status surfaces (MCP resource and HTTP API). It is a value snapshot:
// mutating it never touches the live session.
type SessionStatus struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	EngineKind   string    `json:"engine_kind"`
	Headless     bool      `json:"headless"`
	CurrentURL   string    `json:"current_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Viewport     Viewport  `json:"viewport"`
	TimeoutMs    float64   `json:"timeout_ms"`
}

// PoolHealth is the structured health record computed from one consistent
// snapshot of the pool: SessionCount always equals len(ActiveSessionIDs).
type PoolHealth struct {
	Initialized      bool     `json:"initialized"`
	Status           string   `json:"status"` // "healthy", "degraded" or "not_initialized"
	EngineKind       string   `json:"engine_kind"`
	Headless         bool     `json:"headless"`
	SessionCount     int      `json:"session_count"`
	MaxSessions      int      `json:"max_sessions"`
	ActiveSessionIDs []string `json:"active_session_ids"`
	EnginesLive      []string `json:"engines_live,omitempty"` // kinds with a launched handle
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string     `json:"status"`
	Uptime  string     `json:"uptime"`
	Pool    PoolHealth `json:"pool"`
	Version string     `json:"version"`
}

// SessionsResponse is the response for GET /api/v1/sessions.
type SessionsResponse struct {
	Count    int             `json:"count"`
	Sessions []SessionStatus `json:"sessions"`
}
