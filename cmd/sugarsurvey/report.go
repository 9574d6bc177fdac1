package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/sugarsurvey"
)

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Query stored snapshots",
	}
	cmd.AddCommand(a.reportQuery("snapshots [repo]", "List snapshots, newest month first",
		cobra.MaximumNArgs(1),
		func(ctx context.Context, q *sugarsurvey.QueryBuilder, args []string) (any, error) {
			repo := ""
			if len(args) > 0 {
				repo = args[0]
			}
			return q.Snapshots(ctx, repo)
		}))
	cmd.AddCommand(a.reportQuery("traits <name>", "Monthly usage of one trait by syntax",
		cobra.ExactArgs(1),
		func(ctx context.Context, q *sugarsurvey.QueryBuilder, args []string) (any, error) {
			return q.TraitUsageByMonth(ctx, args[0])
		}))
	cmd.AddCommand(a.reportQuery("regions [unsafe|async]", "Monthly unsafe or async region counts",
		cobra.MaximumNArgs(1),
		func(ctx context.Context, q *sugarsurvey.QueryBuilder, args []string) (any, error) {
			table := "unsafe_code"
			if len(args) > 0 {
				switch args[0] {
				case "unsafe":
				case "async":
					table = "async_code"
				default:
					return nil, fmt.Errorf("unknown region kind %q: must be unsafe or async", args[0])
				}
			}
			return q.RegionsByMonth(ctx, table)
		}))
	cmd.AddCommand(a.reportQuery("transmutes", "Transmute destination types by frequency",
		cobra.NoArgs,
		func(ctx context.Context, q *sugarsurvey.QueryBuilder, args []string) (any, error) {
			return q.TransmuteTargets(ctx)
		}))
	cmd.AddCommand(a.reportQuery("counts <table>", "Monthly row counts of one analysis table",
		cobra.ExactArgs(1),
		func(ctx context.Context, q *sugarsurvey.QueryBuilder, args []string) (any, error) {
			return q.CategoryCountsByMonth(ctx, args[0])
		}))
	return cmd
}

// reportQuery builds a report subcommand that opens the existing database and
// prints the result of fn.
func (a *app) reportQuery(use, short string, args cobra.PositionalArgs,
	fn func(context.Context, *sugarsurvey.QueryBuilder, []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "report " + cmd.Name()
			reg, err := a.registry()
			if err != nil {
				return a.outputError(cmd, name, err)
			}
			s, err := a.openStore(true)
			if err != nil {
				return a.outputError(cmd, name, err)
			}
			defer s.Close()

			res, err := fn(cmd.Context(), sugarsurvey.NewQueryBuilder(s, reg), args)
			if err != nil {
				return a.outputError(cmd, name, err)
			}
			return a.outputResult(cmd, CLIResult{Command: name, Results: res})
		},
	}
}
