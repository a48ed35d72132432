package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/garethgeorge/fixnested/internal/journal"
	"github.com/spf13/cobra"
)

func newHistoryCmd(o *options) *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs, or the steps taken by one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(o.journal)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			if runID != "" {
				return printEntries(cmd.OutOrStdout(), j, runID)
			}
			return printRuns(cmd.OutOrStdout(), j, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list, 0 for all")
	cmd.Flags().StringVar(&runID, "run", "", "show the moves and removals recorded for this run id")
	return cmd
}

func printRuns(out io.Writer, j *journal.Journal, limit int) error {
	runs, err := j.Runs(limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tROOT\tMODE\tMERGED\tMOVED\tSTATUS")
	for _, r := range runs {
		mode := "apply"
		if r.DryRun {
			mode = "dry-run"
		}
		status := "ok"
		switch {
		case r.Error != "":
			status = "failed"
		case !r.Completed:
			status = "incomplete"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.Started.Format(time.RFC3339), r.Root, mode, r.Merged, r.Moved, status)
	}
	return tw.Flush()
}

func printEntries(out io.Writer, j *journal.Journal, runID string) error {
	run, err := j.Run(runID)
	if err != nil {
		return err
	}
	entries, err := j.Entries(runID)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	fmt.Fprintf(out, "run %s on %s started %s\n", run.ID, run.Root, run.Started.Format(time.RFC3339))
	if run.Error != "" {
		fmt.Fprintf(out, "failed: %s\n", run.Error)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.Kind, e.Path, e.Dest)
	}
	return tw.Flush()
}
