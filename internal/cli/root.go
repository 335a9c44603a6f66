// Package cli is the reconai command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/reconai/internal/app"
	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
)

var errHistoryDisabled = errors.New("history is disabled: no store configured")

// Options configure the command tree. Zero values are usable.
type Options struct {
	Version string
	Out     io.Writer
	Err     io.Writer
	// Logger replaces the configured logger.
	Logger logging.Logger
	// Build constructs the application; nil uses app.Build.
	Build func(cfg *config.Config, logger logging.Logger) (*app.Application, error)
}

// session is the state shared by one invocation: loaded config, logger and
// a lazily built application.
type session struct {
	opts    Options
	v       *viper.Viper
	cfgPath string

	cfg    *config.Config
	logger logging.Logger
	closer io.Closer
	app    *app.Application
}

// Execute runs the command tree against os.Args and returns the exit code.
func Execute(version string) int {
	root := NewRootCommand(Options{Version: version})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &session{opts: opts, v: viper.New()}

	root := &cobra.Command{
		Use:   "reconai",
		Short: "ReconAI: OSINT scan orchestration engine",
		Long: "ReconAI runs intelligence-gathering modules against a domain or a person " +
			"concurrently, aggregates their outcomes and attaches an optional analysis.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.load(cmd)
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	// Persistent flags (available to all subcommands).
	pf := root.PersistentFlags()
	pf.StringVar(&s.cfgPath, "config", "", "config file (default ./reconai.yaml or ./configs/reconai.yaml)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-output", "", "log output (stdout|stderr|file)")
	pf.String("db", "", "path of the scan history database")
	pf.String("analysis", "", "analysis backend (heuristic|llm|none)")

	// Bind flags to Viper.
	_ = s.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = s.v.BindPFlag("log.output", pf.Lookup("log-output"))
	_ = s.v.BindPFlag("storage.path", pf.Lookup("db"))
	_ = s.v.BindPFlag("analysis.backend", pf.Lookup("analysis"))

	root.AddCommand(
		newServeCmd(s),
		newScanCmd(s),
		newModulesCmd(s),
		newHistoryCmd(s),
		newStatsCmd(s),
		newDiffCmd(s),
		newVersionCmd(s),
	)
	return root
}

// load reads configuration and builds the logger. Command output owns stdout,
// so logs move to stderr for every command except serve.
func (s *session) load(cmd *cobra.Command) error {
	if cmd.Name() == "serve" {
		if f := cmd.Flags().Lookup("listen"); f != nil {
			_ = s.v.BindPFlag("server.listen_addr", f)
		}
	}
	cfg, err := config.NewLoaderWithViper(s.cfgPath, s.v).Load()
	if err != nil {
		return err
	}
	explicit := cmd.Flags().Changed("log-output") || s.v.InConfig("log.output") ||
		os.Getenv(config.EnvPrefix+"_LOG_OUTPUT") != ""
	if cmd.Name() != "serve" && !explicit && cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	s.cfg = cfg

	if s.opts.Logger != nil {
		s.logger = s.opts.Logger
		return nil
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	s.logger = logger
	s.closer = closer
	return nil
}

// application builds the application on first use.
func (s *session) application() (*app.Application, error) {
	if s.app != nil {
		return s.app, nil
	}
	build := s.opts.Build
	if build == nil {
		build = app.Build
	}
	a, err := build(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}
	s.app = a
	return a, nil
}

// runE wraps a command body so the application and logger are released
// whether or not it fails.
func (s *session) runE(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (s *session) close() error {
	var err error
	if s.app != nil {
		err = s.app.Shutdown(context.Background())
		s.app = nil
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
