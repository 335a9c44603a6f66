package server

import (
	"time"

	"github.com/raysh454/reconai/internal/module"
)

// ScanRequest is the payload accepted by POST /api/scan.
type ScanRequest struct {
	Target     string            `json:"target" example:"example.com"`
	TargetType string            `json:"target_type,omitempty" example:"domain"`
	ScanType   string            `json:"scan_type,omitempty" example:"full"`
	Modules    []string          `json:"modules,omitempty" example:"domain,web"`
	Params     map[string]string `json:"params,omitempty"`
}

// HealthResponse reports liveness and which optional features are enabled.
type HealthResponse struct {
	Status    string         `json:"status" example:"healthy"`
	Version   string         `json:"version" example:"0.1.0"`
	Features  HealthFeatures `json:"features"`
	Timestamp time.Time      `json:"timestamp"`
}

type HealthFeatures struct {
	Analysis    string   `json:"analysis" example:"heuristic"`
	Persistence bool     `json:"persistence" example:"true"`
	Modules     []string `json:"modules"`
}

// ModulesResponse lists every registered module.
type ModulesResponse struct {
	Modules []module.Entry `json:"modules"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"scan not found"`
}
