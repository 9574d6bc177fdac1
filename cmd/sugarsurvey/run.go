package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sugarsurvey"
	"github.com/jward/sugarsurvey/internal/metrics"
)

type runFlags struct {
	repos       string
	from        string
	to          string
	workers     int
	fileWorkers int
	analyses    []string
	exclude     []string
	textfile    string
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample every repository month by month and store the snapshots",
		Long:  "Walks each repository under --repos from --to back to --from, classifies the working tree at the representative commit of every month, and commits one snapshot per month. Months that already have a snapshot are skipped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRun(cmd, &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.repos, "repos", "", "directory with one git working copy per subdirectory")
	fl.StringVar(&f.from, "from", "", "first month, YYYY-MM")
	fl.StringVar(&f.to, "to", "", "last month, YYYY-MM (default: current month)")
	fl.IntVar(&f.workers, "workers", 0, "repositories processed in parallel")
	fl.IntVar(&f.fileWorkers, "file-workers", 0, "files parsed in parallel per snapshot")
	fl.StringSliceVar(&f.analyses, "analyses", nil, "comma-separated analyses to run (default: all)")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "extra glob patterns of files to skip")
	fl.StringVar(&f.textfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
	return cmd
}

func (a *app) runRun(cmd *cobra.Command, f *runFlags) error {
	cfg := a.cfg
	fl := cmd.Flags()
	if fl.Changed("repos") {
		cfg.Repos = f.repos
	}
	if fl.Changed("from") {
		cfg.Range.From = f.from
	}
	if fl.Changed("to") {
		cfg.Range.To = f.to
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("file-workers") {
		cfg.FileWorkers = f.fileWorkers
	}
	if fl.Changed("analyses") {
		cfg.Analyses = f.analyses
	}
	if fl.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, f.exclude...)
	}
	if fl.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = f.textfile
	}
	if err := cfg.Validate(); err != nil {
		return a.outputError(cmd, "run", err)
	}

	start, end, err := cfg.Months(time.Now())
	if err != nil {
		return a.outputError(cmd, "run", err)
	}
	reg, err := a.registry()
	if err != nil {
		return a.outputError(cmd, "run", err)
	}
	s, err := a.openStore(false)
	if err != nil {
		return a.outputError(cmd, "run", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	engine, err := sugarsurvey.New(s,
		sugarsurvey.WithRegistry(reg),
		sugarsurvey.WithWorkers(cfg.Workers),
		sugarsurvey.WithFileWorkers(cfg.FileWorkers),
		sugarsurvey.WithExclude(cfg.Exclude...),
		sugarsurvey.WithLogger(a.log),
		sugarsurvey.WithMetrics(rec),
	)
	if err != nil {
		return a.outputError(cmd, "run", err)
	}
	if err := engine.Migrate(ctx); err != nil {
		return a.outputError(cmd, "run", err)
	}

	stats, runErr := engine.RunSnapshots(ctx, cfg.Repos, start, end)
	if cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			a.log.WithError(err).Warn("write metrics textfile")
		}
	}
	if runErr != nil {
		return a.outputError(cmd, "run", runErr)
	}
	return a.outputResult(cmd, CLIResult{Command: "run", Results: stats})
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the snapshot and analysis tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return a.outputError(cmd, "migrate", err)
			}
			s, err := a.openStore(false)
			if err != nil {
				return a.outputError(cmd, "migrate", err)
			}
			defer s.Close()
			if err := s.Migrate(cmd.Context(), reg); err != nil {
				return a.outputError(cmd, "migrate", fmt.Errorf("migrate: %w", err))
			}
			return a.outputResult(cmd, CLIResult{Command: "migrate", Results: CLIMigration{
				Driver:   s.Driver(),
				Analyses: reg.Names(),
				Tables:   append([]string{"snapshots"}, reg.Tables()...),
			}})
		},
	}
}
