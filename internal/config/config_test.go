package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Scan.ModuleTimeout = 0
	cfg.Analysis.Backend = "magic"
	cfg.Log.Output = "file"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"module_timeout", "analysis.backend", "log.file_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestValidate_PortRange(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Modules.Network.Ports = []int{80, 70000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected out of range port to fail validation")
	}
}

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := NewLoader("").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.ModuleTimeout != 30*time.Second {
		t.Errorf("expected 30s module timeout, got %s", cfg.Scan.ModuleTimeout)
	}
	if len(cfg.Modules.Network.Ports) != len(DefaultPorts) {
		t.Errorf("expected %d default ports, got %d", len(DefaultPorts), len(cfg.Modules.Network.Ports))
	}
	if strings.HasPrefix(cfg.Storage.Path, "~") {
		t.Errorf("expected storage path to be expanded, got %q", cfg.Storage.Path)
	}
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
scan:
  module_timeout: 5s
  scan_deadline: 20s
analysis:
  backend: none
modules:
  network:
    ports: [22, 443]
`)

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.ModuleTimeout != 5*time.Second {
		t.Errorf("module_timeout: got %s", cfg.Scan.ModuleTimeout)
	}
	if cfg.Scan.ScanDeadline != 20*time.Second {
		t.Errorf("scan_deadline: got %s", cfg.Scan.ScanDeadline)
	}
	if cfg.Analysis.Backend != "none" {
		t.Errorf("analysis.backend: got %q", cfg.Analysis.Backend)
	}
	if len(cfg.Modules.Network.Ports) != 2 || cfg.Modules.Network.Ports[1] != 443 {
		t.Errorf("ports: got %v", cfg.Modules.Network.Ports)
	}
	// untouched keys keep their defaults
	if cfg.WebClient.Backend != "nethttp" {
		t.Errorf("webclient.backend: got %q", cfg.WebClient.Backend)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reconai.yaml", "scan:\n  module_timeout: 5s\n")
	t.Setenv("RECONAI_SCAN_MODULE_TIMEOUT", "7s")

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.ModuleTimeout != 7*time.Second {
		t.Errorf("expected env override 7s, got %s", cfg.Scan.ModuleTimeout)
	}
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	t.Parallel()
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestExpandPath(t *testing.T) {
	t.Parallel()
	got, err := ExpandPath("/abs/path.db")
	if err != nil || got != "/abs/path.db" {
		t.Fatalf("absolute path changed: %q, %v", got, err)
	}
	got, err = ExpandPath("~/x.db")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if strings.HasPrefix(got, "~") || !strings.HasSuffix(got, "x.db") {
		t.Errorf("unexpected expansion %q", got)
	}
}
