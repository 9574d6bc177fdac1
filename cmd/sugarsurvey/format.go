package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/sugarsurvey"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

func formatList() string {
	return strings.Join(validFormats, "|")
}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}

// outputResult writes result to the command's stdout in the selected format.
func (a *app) outputResult(cmd *cobra.Command, result CLIResult) error {
	return writeResult(cmd.OutOrStdout(), a.flagFormat, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In json and yaml mode the error is written to
// stdout as a CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(cmd *cobra.Command, command string, err error) error {
	a.errorHandled = true
	if a.flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	_ = writeResult(cmd.OutOrStdout(), a.flagFormat, CLIResult{Command: command, Error: err.Error()})
	return err
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		return writeText(w, result.Results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

// writeText dispatches to the appropriate text formatter based on the result
// type.
func writeText(w io.Writer, results any) error {
	switch v := results.(type) {
	case *sugarsurvey.RunStats:
		formatRunStatsText(w, v)
	case []sugarsurvey.Classified:
		formatClassifiedText(w, v)
	case []CLISample:
		formatSamplesText(w, v)
	case CLIMigration:
		formatMigrationText(w, v)
	case []sugarsurvey.Snapshot:
		formatSnapshotsText(w, v)
	case []sugarsurvey.TraitMonth:
		formatTraitMonthsText(w, v)
	case []sugarsurvey.RegionMonth:
		formatRegionMonthsText(w, v)
	case []sugarsurvey.MonthCount:
		formatMonthCountsText(w, v)
	case []sugarsurvey.TypeCount:
		formatTypeCountsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatRunStatsText(w io.Writer, s *sugarsurvey.RunStats) {
	fmt.Fprintf(w, "Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Repositories: %d ok, %d failed\n", s.Repositories, s.RepositoriesFailed)
	fmt.Fprintf(w, "Snapshots:    %d committed, %d skipped, %d failed\n", s.Snapshots, s.SnapshotsSkipped, s.SnapshotsFailed)
	fmt.Fprintf(w, "Files:        %d classified, %d skipped\n", s.Files, s.FilesFailed)
	if len(s.Occurrences) > 0 {
		fmt.Fprintln(w, "Occurrences:")
		for _, name := range s.Analyses() {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Occurrences[name])
		}
	}
}

func formatClassifiedText(w io.Writer, occs []sugarsurvey.Classified) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTABLE\tCATEGORY\tFIELDS")
	for _, o := range occs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.Line, o.Table, o.Category, fieldsText(o.Fields))
	}
	tw.Flush()
}

// fieldsText renders the fields as sorted key=value pairs, leaving out the
// location columns and unset values.
func fieldsText(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == nil || k == "file_name" || k == "line_number" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func formatSamplesText(w io.Writer, samples []CLISample) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tCOMMIT\tCOMMITTED")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Month, s.Commit, s.CommittedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func formatMigrationText(w io.Writer, m CLIMigration) {
	fmt.Fprintf(w, "Driver: %s\n", m.Driver)
	fmt.Fprintf(w, "Analyses: %s\n", strings.Join(m.Analyses, ", "))
	fmt.Fprintf(w, "Tables: %s\n", strings.Join(m.Tables, ", "))
}

func formatSnapshotsText(w io.Writer, snaps []sugarsurvey.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREPOSITORY\tMONTH\tCOMMIT\tRUN")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Repository, s.Month, s.CommitHash, s.RunID)
	}
	tw.Flush()
}

func formatTraitMonthsText(w io.Writer, rows []sugarsurvey.TraitMonth) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tSYNTAX\tOCCURRENCES\tREPOSITORIES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.Month, r.Syntax, r.Occurrences, r.Repositories)
	}
	tw.Flush()
}

func formatRegionMonthsText(w io.Writer, rows []sugarsurvey.RegionMonth) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tREGION\tTOTAL\tOUTERMOST\tQUALIFIED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.Month, r.RegionType, r.Total, r.Outermost, r.Qualified)
	}
	tw.Flush()
}

func formatMonthCountsText(w io.Writer, rows []sugarsurvey.MonthCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tSNAPSHOTS\tOCCURRENCES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Month, r.Snapshots, r.Occurrences)
	}
	tw.Flush()
}

func formatTypeCountsText(w io.Writer, rows []sugarsurvey.TypeCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tOCCURRENCES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", r.Type, r.Count)
	}
	tw.Flush()
}
