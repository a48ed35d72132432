package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/garethgeorge/fixnested/internal/env"
	"github.com/garethgeorge/fixnested/internal/journal"
	"github.com/garethgeorge/fixnested/internal/metric"
	"github.com/garethgeorge/fixnested/internal/nest"
	"github.com/garethgeorge/fixnested/internal/report"
	"github.com/garethgeorge/fixnested/internal/runlock"
	"github.com/garethgeorge/fixnested/internal/shellscript"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "unknown"
	commit  = "unknown"
)

// maxStablePasses bounds --until-stable; every pass that merges removes at least one
// directory level, so real trees settle long before this.
const maxStablePasses = 64

const (
	exitFailure = 1
	exitLocked  = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

type options struct {
	path          string
	skipNameMatch bool
	dryRun        bool
	untilStable   bool
	exclude       []string
	journal       string
	noJournal     bool
	report        string
	metricsFile   string
	script        string
	logFile       string
	verbose       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "fixnested",
		Short: "Collapse directories that only contain a single nested directory",
		Long: `fixnested fixes mistakenly nested directories, where a directory's only
subdirectory has the same name as the directory itself:

  somedir/somedir/file.txt  ->  somedir/file.txt

The contents of the nested directory are moved up one level and the emptied
directory is removed. With --skip-name-match any single nested directory is
collapsed regardless of its name.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			installLoggers(o.verbose, o.logFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd.OutOrStdout(), o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.path, "path", "p", "", "root directory to search for nested directories")
	flags.BoolVarP(&o.skipNameMatch, "skip-name-match", "s", false, "collapse a single nested directory even when its name differs from its parent")
	flags.BoolVarP(&o.dryRun, "dry-run", "d", false, "report what would be moved and removed without changing anything")
	flags.BoolVar(&o.untilStable, "until-stable", false, "repeat passes until nothing is left to collapse (ignored with --dry-run)")
	flags.StringArrayVar(&o.exclude, "exclude", nil, "skip directories matching this pattern relative to the root, e.g. '**/.git' (repeatable)")
	flags.StringVar(&o.report, "report", "", "write a JSON run report to this file")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write prometheus metrics in textfile collector format to this file")
	flags.StringVar(&o.script, "script", "", "write the planned moves as a shell script to this file, '-' for stdout")
	flags.BoolVar(&o.noJournal, "no-journal", false, "do not record the run in the journal")
	_ = cmd.MarkFlagRequired("path")

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&o.journal, "journal", env.JournalPath(), "path to the move journal database. Overrides "+env.EnvVarJournalPath+".")
	pflags.StringVar(&o.logFile, "log-file", env.LogFile(), "also write JSON logs to this file. Overrides "+env.EnvVarLogFile+".")
	pflags.BoolVarP(&o.verbose, "verbose", "v", false, "log per-directory decisions")

	cmd.AddCommand(newHistoryCmd(o))
	return cmd
}

func runFix(out io.Writer, o *options) error {
	root, err := filepath.Abs(o.path)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", o.path, err)
	}

	opts := nest.Options{
		Root:          root,
		SkipNameMatch: o.skipNameMatch,
		DryRun:        o.dryRun,
		Exclude:       o.exclude,
		RunID:         uuid.NewString(),
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	lock, err := runlock.Acquire(env.LocksDir(), root)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return &exitError{code: exitLocked, err: err}
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			zap.S().Warnf("failed to release run lock: %v", err)
		}
	}()

	var j *journal.Journal
	if !o.noJournal {
		j, err = journal.Open(o.journal)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		opts.Observers = append(opts.Observers, j)
	}

	metrics := metric.GetRegistry()
	opts.Observers = append(opts.Observers, metrics)

	var script *shellscript.Writer
	if o.script != "" {
		w := out
		if o.script != "-" {
			f, err := os.Create(o.script)
			if err != nil {
				return fmt.Errorf("create script file: %w", err)
			}
			defer f.Close()
			w = f
		}
		script = shellscript.NewWriter(w)
		opts.Observers = append(opts.Observers, script)
	}

	passes := 1
	if o.untilStable && !o.dryRun {
		passes = maxStablePasses
	}

	var summaries []*nest.Summary
	var runErr error
	for pass := 0; pass < passes; pass++ {
		passOpts := opts
		if pass > 0 {
			passOpts.RunID = fmt.Sprintf("%s.%d", opts.RunID, pass+1)
		}
		if j != nil {
			if err := j.Begin(passOpts); err != nil {
				runErr = fmt.Errorf("journal: %w", err)
				break
			}
		}
		summary, err := nest.Run(passOpts)
		if summary != nil {
			summaries = append(summaries, summary)
			if j != nil {
				if e := j.Finish(summary, err); e != nil {
					zap.S().Warnf("failed to record run %v in the journal: %v", summary.RunID, e)
				}
			}
		}
		if err != nil {
			runErr = err
			break
		}
		if summary.Merged == 0 {
			break
		}
		if pass+1 < passes {
			zap.S().Infof("pass %d merged %d directories, starting another pass", pass+1, summary.Merged)
		}
	}

	var outErr error
	if script != nil {
		if err := script.Close(); err != nil {
			outErr = multierror.Append(outErr, err)
		}
	}
	if len(summaries) > 0 {
		last := summaries[len(summaries)-1]
		metrics.RecordRun(last.Finished.Sub(summaries[0].Started).Seconds(), runErr == nil)
	}
	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile); err != nil {
			outErr = multierror.Append(outErr, fmt.Errorf("write metrics: %w", err))
		}
	}
	if o.report != "" && len(summaries) > 0 {
		if err := report.New(summaries, runErr).Write(o.report); err != nil {
			outErr = multierror.Append(outErr, fmt.Errorf("write report: %w", err))
		}
	}

	if runErr != nil {
		return &exitError{code: exitFailure, err: describeFailure(runErr, summaries, j != nil)}
	}
	return outErr
}

// describeFailure tells the operator whether the tree was changed before the failure.
func describeFailure(err error, summaries []*nest.Summary, journaled bool) error {
	mutations := 0
	for _, s := range summaries {
		mutations += s.Mutations
	}
	if mutations == 0 {
		return fmt.Errorf("%w\nno changes were made to the filesystem", err)
	}
	msg := fmt.Sprintf("%d filesystem changes were made before the failure", mutations)
	if journaled {
		msg += fmt.Sprintf(", see 'fixnested history --run %s'", summaries[len(summaries)-1].RunID)
	}
	return fmt.Errorf("%w\n%s", err, msg)
}
