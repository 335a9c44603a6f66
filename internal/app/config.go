package app

import (
	"time"

	"github.com/raysh454/reconai/internal/config"
)

// Config bounds the lifecycle of every scan the orchestrator runs.
type Config struct {
	// ModuleTimeout is applied to each module invocation.
	ModuleTimeout time.Duration
	// ScanDeadline bounds the dispatch phase as a whole. Zero disables it.
	ScanDeadline time.Duration
	// AnalysisTimeout bounds one analyzer call. Zero means no extra bound.
	AnalysisTimeout time.Duration
	// PersistTimeout bounds the single SaveScan call at the terminal transition.
	PersistTimeout time.Duration
	// JobRetentionTime is how long terminal scans stay in memory.
	JobRetentionTime time.Duration
	// EventBuffer is the capacity of each scan's event channel.
	EventBuffer int
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		ModuleTimeout:    30 * time.Second,
		ScanDeadline:     2 * time.Minute,
		AnalysisTimeout:  60 * time.Second,
		PersistTimeout:   10 * time.Second,
		JobRetentionTime: 5 * time.Minute,
		EventBuffer:      64,
	}
}

// ConfigFrom maps the loaded runtime configuration onto orchestrator settings.
func ConfigFrom(c *config.Config) *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	out.ModuleTimeout = c.Scan.ModuleTimeout
	out.ScanDeadline = c.Scan.ScanDeadline
	out.AnalysisTimeout = c.Analysis.Timeout
	if c.Scan.Retention > 0 {
		out.JobRetentionTime = c.Scan.Retention
	}
	return out
}
