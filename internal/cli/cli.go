// Package cli implements the dbdev command-line interface.
//
// The CLI serves the website and queries the package registry from the
// terminal through the same query client the website uses, so repeated
// lookups are answered from the persistent cache.
//
// # Commands
//
//   - serve: run the website
//   - versions, popular, profile: query the registry
//   - cache: manage the persistent query cache
//   - auth: sign in to the registry
//   - open: open a website page in the browser
//
// # Configuration
//
// Settings come from $XDG_CONFIG_HOME/dbdev/config.toml, then DBDEV_*
// environment variables, then flags. All commands support --verbose (-v)
// for debug logging; the logger travels in the command context.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dbdev/internal/config"
	"github.com/matzehuels/dbdev/pkg/buildinfo"
)

const appName = "dbdev"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config
	verbose    bool
}

// New creates a CLI that logs to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), cfg: config.Default()}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config returns the loaded configuration.
func (c *CLI) Config() config.Config { return c.cfg }

// RootCommand creates the root cobra command with all subcommands
// registered. Configuration is loaded before any subcommand runs; flags
// set on the command line override it.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "dbdev is the database package manager website and registry client",
		Long:          `dbdev serves the database.dev website and queries the registry of Postgres Trusted Language Extensions from the terminal.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dbdev/config.toml)")
	flags.String("store", "", "registry backend: postgrest, sqlite or mongo")
	flags.String("supabase-url", "", "Supabase project URL")
	flags.String("cache", "", "query cache backend: file, redis or none")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.popularCommand())
	root.AddCommand(c.profileCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.openCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Execute runs the CLI with ctx.
func Execute(ctx context.Context, w io.Writer) error {
	return New(w, LogInfo).RootCommand().ExecuteContext(ctx)
}

func (c *CLI) setup(cmd *cobra.Command) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	overrides := []struct {
		name string
		dst  *string
	}{
		{"store", &cfg.Store.Backend},
		{"supabase-url", &cfg.Supabase.URL},
		{"cache", &cfg.Cache.Backend},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dst, _ = flags.GetString(o.name)
		}
	}
	if !c.verbose && cfg.LogLevel != "" {
		if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
			c.SetLogLevel(level)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.Logger.Debug("config loaded", "store", cfg.Store.Backend, "cache", cfg.Cache.Backend)
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}
