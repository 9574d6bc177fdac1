package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/config"
	"github.com/jward/sugarsurvey/internal/logging"
	"github.com/jward/sugarsurvey/internal/store"
)

// app holds the global flags and the state PersistentPreRunE derives from
// them.
type app struct {
	flagConfig    string
	flagDB        string
	flagDriver    string
	flagFormat    string
	flagLogLevel  string
	flagLogFormat string

	cfg *config.Config
	log *logrus.Logger

	// errorHandled is set by outputError so main() doesn't double-print.
	errorHandled bool
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sugarsurvey",
		Short:         "Month-by-month survey of Rust syntax usage across repositories",
		Long:          "Sugarsurvey samples each repository once per month, classifies trait, closure, unsafe, async and transmute usage with tree-sitter, and stores one snapshot per month in SQLite or PostgreSQL.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		// No Run: prints help by default.
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", "", "config file (default: .sugarsurvey.yaml in the working directory)")
	pf.StringVar(&a.flagDB, "db", "", "database DSN; a file path for sqlite3")
	pf.StringVar(&a.flagDriver, "driver", "", "database driver: sqlite3|pgx")
	pf.StringVar(&a.flagFormat, "format", "json", "output format: "+formatList())
	pf.StringVar(&a.flagLogLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "log format: text|json")

	root.AddCommand(a.runCmd())
	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.classifyCmd())
	root.AddCommand(a.timelineCmd())
	root.AddCommand(a.reportCmd())
	return root
}

// setup loads the configuration, applies the global flag overrides and builds
// the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := validateFormat(a.flagFormat); err != nil {
		return err
	}
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB.DSN = a.flagDB
	}
	if flags.Changed("driver") {
		cfg.DB.Driver = a.flagDriver
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.flagLogFormat
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// registry returns the configured analyses, or all of them.
func (a *app) registry() (analysis.Registry, error) {
	if len(a.cfg.Analyses) == 0 {
		return analysis.Default(), nil
	}
	return analysis.Default().Only(a.cfg.Analyses...)
}

// openStore opens the configured database. When mustExist is set, a missing
// SQLite file is an error instead of being created.
func (a *app) openStore(mustExist bool) (*store.Store, error) {
	driver, err := store.NormalizeDriver(a.cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	dsn := a.cfg.DB.DSN
	if driver == store.DriverSQLite {
		if _, err := os.Stat(dsn); mustExist && os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s (run 'sugarsurvey run' first)", dsn)
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
	}
	s, err := store.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}
