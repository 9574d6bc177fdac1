package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/sugarsurvey/internal/timeline"
)

func (a *app) timelineCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "timeline <repo>",
		Short: "Print the month plan of one repository without checking anything out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("from") {
				cfg.Range.From = from
			}
			if cmd.Flags().Changed("to") {
				cfg.Range.To = to
			}
			start, end, err := cfg.Months(time.Now())
			if err != nil {
				return a.outputError(cmd, "timeline", err)
			}

			repo, err := timeline.Open(args[0])
			if err != nil {
				return a.outputError(cmd, "timeline", err)
			}
			plan, err := repo.Plan(cmd.Context(), start, end)
			if err != nil {
				return a.outputError(cmd, "timeline", err)
			}

			samples := make([]CLISample, 0, len(plan))
			for _, s := range plan {
				samples = append(samples, CLISample{
					Month:       s.Bucket.String(),
					Commit:      s.Hash.String(),
					CommittedAt: s.CommittedAt,
				})
			}
			return a.outputResult(cmd, CLIResult{Command: "timeline", Results: samples})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "last month, YYYY-MM (default: current month)")
	return cmd
}
