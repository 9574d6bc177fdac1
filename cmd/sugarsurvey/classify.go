package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/sugarsurvey"
)

func (a *app) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file.rs>",
		Short: "Print the occurrences found in one Rust file",
		Long:  "Parses a single file and runs the configured analyses over it without touching the database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return a.outputError(cmd, "classify", err)
			}
			out, err := sugarsurvey.ClassifyFile(cmd.Context(), args[0], reg)
			if err != nil {
				return a.outputError(cmd, "classify", err)
			}
			if out == nil {
				out = []sugarsurvey.Classified{}
			}
			return a.outputResult(cmd, CLIResult{Command: "classify", Results: out})
		},
	}
}
