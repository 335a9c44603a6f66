// Package config holds the runtime configuration for reconai and the viper
// based loader that fills it from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	WebClient WebClientConfig `mapstructure:"webclient" yaml:"webclient"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Modules   ModulesConfig   `mapstructure:"modules" yaml:"modules"`
}

type ServerConfig struct {
	ListenAddr  string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// AllowedOrigins is echoed in Access-Control-Allow-Origin. "*" allows any.
	AllowedOrigins string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type StorageConfig struct {
	// Path is the sqlite database file. A leading ~ is expanded.
	Path string `mapstructure:"path" yaml:"path"`
}

// ScanConfig bounds how long a scan may run.
type ScanConfig struct {
	// ModuleTimeout is applied to every module invocation.
	ModuleTimeout time.Duration `mapstructure:"module_timeout" yaml:"module_timeout"`
	// ScanDeadline bounds the whole dispatch phase. Zero disables it.
	ScanDeadline time.Duration `mapstructure:"scan_deadline" yaml:"scan_deadline"`
	// Retention is how long terminal scans stay in the in-memory table.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

type AnalysisConfig struct {
	// Backend is one of heuristic, llm or none.
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Model    string        `mapstructure:"model" yaml:"model"`
}

type WebClientConfig struct {
	// Backend is one of nethttp or chromedp.
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	// IdleAfter is the network quiet period chromedp waits for before reading the DOM.
	IdleAfter time.Duration `mapstructure:"idle_after" yaml:"idle_after"`
	Headless  bool          `mapstructure:"headless" yaml:"headless"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Output     string `mapstructure:"output" yaml:"output"`
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ModulesConfig carries per-module knobs.
type ModulesConfig struct {
	Domain  DomainModuleConfig  `mapstructure:"domain" yaml:"domain"`
	Web     WebModuleConfig     `mapstructure:"web" yaml:"web"`
	Network NetworkModuleConfig `mapstructure:"network" yaml:"network"`
	Social  SocialModuleConfig  `mapstructure:"social" yaml:"social"`
}

type DomainModuleConfig struct {
	// Resolver is a host:port DNS server. Empty means the first server from
	// /etc/resolv.conf, falling back to 8.8.8.8:53.
	Resolver         string        `mapstructure:"resolver" yaml:"resolver"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	Subdomains       []string      `mapstructure:"subdomains" yaml:"subdomains"`
	ReverseLimit     int           `mapstructure:"reverse_limit" yaml:"reverse_limit"`
	WhoisServer      string        `mapstructure:"whois_server" yaml:"whois_server"`
	AttemptTransfer  bool          `mapstructure:"attempt_transfer" yaml:"attempt_transfer"`
	SubdomainWorkers int           `mapstructure:"subdomain_workers" yaml:"subdomain_workers"`
}

type WebModuleConfig struct {
	CrawlDepth int `mapstructure:"crawl_depth" yaml:"crawl_depth"`
	MaxPages   int `mapstructure:"max_pages" yaml:"max_pages"`
	// FetchWorkers bounds concurrent requests when probing crawled pages.
	FetchWorkers int `mapstructure:"fetch_workers" yaml:"fetch_workers"`
	// TLSPort is the port probed for certificate details.
	TLSPort int `mapstructure:"tls_port" yaml:"tls_port"`
}

type NetworkModuleConfig struct {
	Ports       []int         `mapstructure:"ports" yaml:"ports"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	BannerWait  time.Duration `mapstructure:"banner_wait" yaml:"banner_wait"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
}

type SocialModuleConfig struct {
	GitHubAPI    string            `mapstructure:"github_api" yaml:"github_api"`
	GitHubToken  string            `mapstructure:"github_token" yaml:"github_token"`
	ProfileBases map[string]string `mapstructure:"profile_bases" yaml:"profile_bases"`
	RepoLimit    int               `mapstructure:"repo_limit" yaml:"repo_limit"`
}

// DefaultPorts mirrors the common service ports probed by the network module.
var DefaultPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 143, 443, 465, 587, 993, 995,
	3306, 3389, 5432, 5900, 8080, 8443, 27017,
}

// DefaultSubdomains is the word list probed by the domain module.
var DefaultSubdomains = []string{
	"www", "mail", "ftp", "admin", "blog", "dev", "staging", "api", "test", "portal",
	"vpn", "remote", "webmail", "shop", "secure", "m", "mobile", "app", "cdn", "static",
}

// Default returns a Config populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			ReadTimeout:    15 * time.Second,
			AllowedOrigins: "*",
		},
		Storage: StorageConfig{
			Path: "~/.config/reconai/reconai.db",
		},
		Scan: ScanConfig{
			ModuleTimeout: 30 * time.Second,
			ScanDeadline:  2 * time.Minute,
			Retention:     5 * time.Minute,
		},
		Analysis: AnalysisConfig{
			Backend:  "heuristic",
			Timeout:  60 * time.Second,
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4.1-mini",
		},
		WebClient: WebClientConfig{
			Backend:   "nethttp",
			Timeout:   10 * time.Second,
			UserAgent: "reconai/2.0",
			IdleAfter: 2 * time.Second,
			Headless:  true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Modules: ModulesConfig{
			Domain: DomainModuleConfig{
				QueryTimeout:     5 * time.Second,
				Subdomains:       append([]string(nil), DefaultSubdomains...),
				ReverseLimit:     5,
				WhoisServer:      "whois.iana.org:43",
				AttemptTransfer:  true,
				SubdomainWorkers: 8,
			},
			Web: WebModuleConfig{
				CrawlDepth:   1,
				MaxPages:     25,
				FetchWorkers: 4,
				TLSPort:      443,
			},
			Network: NetworkModuleConfig{
				Ports:       append([]int(nil), DefaultPorts...),
				DialTimeout: 2 * time.Second,
				BannerWait:  time.Second,
				Concurrency: 20,
			},
			Social: SocialModuleConfig{
				GitHubAPI: "https://api.github.com",
				ProfileBases: map[string]string{
					"twitter":  "https://twitter.com/",
					"linkedin": "https://www.linkedin.com/company/",
					"facebook": "https://www.facebook.com/",
				},
				RepoLimit: 10,
			},
		},
	}
}

var (
	validAnalysisBackends = []string{"heuristic", "llm", "none"}
	validLogFormats       = []string{"json", "text"}
	validLogOutputs       = []string{"stdout", "stderr", "file"}
)

// Validate reports the first group of configuration problems found.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.ModuleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan.module_timeout must be positive, got %s", c.Scan.ModuleTimeout))
	}
	if c.Scan.ScanDeadline < 0 {
		errs = append(errs, fmt.Errorf("scan.scan_deadline must not be negative, got %s", c.Scan.ScanDeadline))
	}
	if !oneOf(c.Analysis.Backend, validAnalysisBackends) {
		errs = append(errs, fmt.Errorf("analysis.backend %q must be one of %v", c.Analysis.Backend, validAnalysisBackends))
	}
	if c.Analysis.Backend == "llm" && c.Analysis.Endpoint == "" {
		errs = append(errs, errors.New("analysis.endpoint is required for the llm backend"))
	}
	if !oneOf(c.Log.Format, validLogFormats) {
		errs = append(errs, fmt.Errorf("log.format %q must be one of %v", c.Log.Format, validLogFormats))
	}
	if !oneOf(c.Log.Output, validLogOutputs) {
		errs = append(errs, fmt.Errorf("log.output %q must be one of %v", c.Log.Output, validLogOutputs))
	}
	if c.Log.Output == "file" && c.Log.FilePath == "" {
		errs = append(errs, errors.New("log.file_path is required when log.output is file"))
	}
	for _, p := range c.Modules.Network.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("modules.network.ports: %d out of range", p))
			break
		}
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
