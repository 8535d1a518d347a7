// Package main is the promptvault command: the import worker and a CLI over
// the prompt library.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/promptvault/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	cfg     *config.Config
	driver  string
	dbPath  string
	user    string
	envFile string
	debug   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "promptvault",
		Short:         "Import, tag and search image-generation prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.driver, "store", "", "Storage backend: sqlite, postgres or memory (default from settings)")
	f.StringVar(&opts.dbPath, "db", "", "SQLite database path (default from settings)")
	f.StringVarP(&opts.user, "user", "u", "", "Acting user id (default from settings)")
	f.StringVar(&opts.envFile, "env-file", ".env", "Environment file to load if present")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newDeleteCmd(opts),
		newDeleteAllCmd(opts),
		newVisualizeCmd(opts),
		newEnhanceCmd(opts),
		newTagsCmd(opts),
		newRulesCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "promptvault version %s\n", Version)
			},
		},
	)
	return cmd
}

// load reads .env, settings and flags, and configures logging.
func (o *rootOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err == nil {
			log.Debug().Str("path", o.envFile).Msg("Environment loaded")
		}
	}

	if err := config.EnsureAll(); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if o.driver != "" {
		cfg.DBDriver = o.driver
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.user != "" {
		cfg.DefaultUser = o.user
	}
	o.cfg = cfg

	setupLogging(cfg.LogLevel, o.debug)
	return nil
}

// setupLogging sends zerolog output to stderr; stdout carries command output.
func setupLogging(level string, debug bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}
