package server

import (
	"time"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (CLI scans run
	// the orchestrator in-process and do not require the network).
	ListenAddr  string
	ReadTimeout time.Duration
	// AllowedOrigins is a comma separated origin list, or "*".
	AllowedOrigins string
	Version        string
	Logger         logging.Logger
}

// ConfigFrom maps the loaded server section onto a server Config.
func ConfigFrom(c config.ServerConfig, version string, logger logging.Logger) Config {
	return Config{
		ListenAddr:     c.ListenAddr,
		ReadTimeout:    c.ReadTimeout,
		AllowedOrigins: c.AllowedOrigins,
		Version:        version,
		Logger:         logger,
	}
}
