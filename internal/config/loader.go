package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. RECONAI_SCAN_MODULE_TIMEOUT.
const EnvPrefix = "RECONAI"

// Loader reads configuration through a dedicated viper instance.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a loader. configPath may point at a file or be empty to
// search ./reconai.yaml and ./configs/reconai.yaml.
func NewLoader(configPath string) *Loader {
	return NewLoaderWithViper(configPath, viper.New())
}

// NewLoaderWithViper lets callers pass a viper instance that already has
// command-line flags bound to it.
func NewLoaderWithViper(configPath string, v *viper.Viper) *Loader {
	return &Loader{configPath: configPath, v: v}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load applies defaults, the config file (if any) and the environment, then validates.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	setDefaults(l.v, Default())

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	path, err := ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("expand storage path: %w", err)
	}
	cfg.Storage.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) readConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", l.configPath, err)
		}
		return nil
	}

	l.v.SetConfigName("reconai")
	l.v.AddConfigPath(".")
	l.v.AddConfigPath("./configs")
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("scan.module_timeout", d.Scan.ModuleTimeout)
	v.SetDefault("scan.scan_deadline", d.Scan.ScanDeadline)
	v.SetDefault("scan.retention", d.Scan.Retention)

	v.SetDefault("analysis.backend", d.Analysis.Backend)
	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.endpoint", d.Analysis.Endpoint)
	v.SetDefault("analysis.api_key", d.Analysis.APIKey)
	v.SetDefault("analysis.model", d.Analysis.Model)

	v.SetDefault("webclient.backend", d.WebClient.Backend)
	v.SetDefault("webclient.timeout", d.WebClient.Timeout)
	v.SetDefault("webclient.user_agent", d.WebClient.UserAgent)
	v.SetDefault("webclient.idle_after", d.WebClient.IdleAfter)
	v.SetDefault("webclient.headless", d.WebClient.Headless)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("modules.domain.resolver", d.Modules.Domain.Resolver)
	v.SetDefault("modules.domain.query_timeout", d.Modules.Domain.QueryTimeout)
	v.SetDefault("modules.domain.subdomains", d.Modules.Domain.Subdomains)
	v.SetDefault("modules.domain.reverse_limit", d.Modules.Domain.ReverseLimit)
	v.SetDefault("modules.domain.whois_server", d.Modules.Domain.WhoisServer)
	v.SetDefault("modules.domain.attempt_transfer", d.Modules.Domain.AttemptTransfer)
	v.SetDefault("modules.domain.subdomain_workers", d.Modules.Domain.SubdomainWorkers)

	v.SetDefault("modules.web.crawl_depth", d.Modules.Web.CrawlDepth)
	v.SetDefault("modules.web.max_pages", d.Modules.Web.MaxPages)
	v.SetDefault("modules.web.fetch_workers", d.Modules.Web.FetchWorkers)
	v.SetDefault("modules.web.tls_port", d.Modules.Web.TLSPort)

	v.SetDefault("modules.network.ports", d.Modules.Network.Ports)
	v.SetDefault("modules.network.dial_timeout", d.Modules.Network.DialTimeout)
	v.SetDefault("modules.network.banner_wait", d.Modules.Network.BannerWait)
	v.SetDefault("modules.network.concurrency", d.Modules.Network.Concurrency)

	v.SetDefault("modules.social.github_api", d.Modules.Social.GitHubAPI)
	v.SetDefault("modules.social.github_token", d.Modules.Social.GitHubToken)
	v.SetDefault("modules.social.profile_bases", d.Modules.Social.ProfileBases)
	v.SetDefault("modules.social.repo_limit", d.Modules.Social.RepoLimit)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p == "" || p[0] != '~' {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[1:]), nil
}
