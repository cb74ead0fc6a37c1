// Package cli implements the chronicle command-line interface: the
// maintenance tools (import, restore, validate, repair, dedupe, snapshot)
// over the archive tree and the SQLite index.
// See docs/ARCHITECTURE § CLI.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/index"
	"github.com/mesh-intelligence/chronicle/internal/paths"
)

// Exit codes. Maintenance tools return 0 on success, 1 when issues were
// found or some records failed, and 2 for tool-specific escalation (the
// validator falling below its minimum score, or an environment failure).
const (
	exitSuccess   = 0
	exitIssues    = 1
	exitEscalated = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir   string
	dataDir     string
	archiveRoot string
	logLevel    string
	jsonMode    bool
}

var flags rootFlags

// NewRootCmd creates the top-level "chronicle" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chronicle",
		Short: "Archive-first consistency tools for community records",
		Long: "Chronicle keeps human-readable text archives as the authoritative\n" +
			"record of community data and maintains a rebuildable SQLite index\n" +
			"beside them. Its subcommands rebuild, restore, validate, and repair\n" +
			"the index against the archives.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "index data directory (default: .chronicle-db)")
	root.PersistentFlags().StringVar(&flags.archiveRoot, "archive-root", "", "archive tree root (default: ./archive)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default: info)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output results in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newRepairCmd())
	root.AddCommand(newDedupeCmd())
	root.AddCommand(newSnapshotCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
// Subcommands that need a non-default exit code return an *exitCodeError.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if ec, ok := err.(*exitCodeError); ok {
			if ec.msg != "" {
				fmt.Fprintln(os.Stderr, ec.msg)
			}
			os.Exit(ec.code)
		}
		os.Exit(exitEscalated)
	}
	os.Exit(exitSuccess)
}

// exitCodeError carries a specific process exit code out of a subcommand.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// env is everything an opened subcommand needs: resolved directories, the
// index store, and a configured logger.
type env struct {
	cfg         *cliConfig
	archiveRoot string
	idx         *index.Store
	log         zerolog.Logger
}

func (e *env) close() {
	if e.idx != nil {
		e.idx.Close()
	}
}

// openEnv resolves directories (flag > config > env > default), opens the
// index, and builds the logger. Callers must close the returned env.
func openEnv() (*env, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	archiveRoot, err := paths.ResolveArchiveRoot(flags.archiveRoot, cfg.ArchiveRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving archive root: %w", err)
	}

	idx, err := index.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return &env{
		cfg:         cfg,
		archiveRoot: archiveRoot,
		idx:         idx,
		log:         newLogger(cfg.LogLevel),
	}, nil
}

// newLogger builds the console logger shared by all subcommands. The
// level comes from the --log-level flag, then config, then info.
func newLogger(configLevel string) zerolog.Logger {
	level := flags.logLevel
	if level == "" {
		level = configLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(parsed).
		With().Timestamp().Logger()
}
