package nest

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/garethgeorge/fixnested/internal/fsutil"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Options configures a single pass over a directory tree.
type Options struct {
	Root          string
	SkipNameMatch bool // any single nested directory qualifies, whatever its name
	DryRun        bool // report intended moves and removals without applying them

	FS        fsutil.FS // defaults to the host filesystem
	Exclude   []string  // doublestar patterns relative to Root
	Observers []Observer
	RunID     string // generated when empty
}

func (o Options) Validate() error {
	var err error
	if o.Root == "" {
		err = multierror.Append(err, errors.New("root path is required"))
	}
	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			err = multierror.Append(err, fmt.Errorf("invalid exclude pattern %q", pattern))
		}
	}
	return err
}

// Summary describes the outcome of a pass. Counts include planned steps in dry run mode.
type Summary struct {
	RunID         string
	Root          string
	DryRun        bool
	SkipNameMatch bool
	Started       time.Time
	Finished      time.Time

	Visited   int // directories taken off the walk stack
	Merged    int // nested directories merged into their parent
	Moved     int // entries relocated
	Removed   int // emptied nested directories removed
	Mutations int // filesystem changes actually applied

	// Skipped collects directories that could not be inspected. Nil when none were.
	Skipped *multierror.Error
}

// Mutated reports whether the pass changed the filesystem.
func (s *Summary) Mutated() bool {
	return s.Mutations > 0
}

func (s *Summary) SkippedCount() int {
	if s.Skipped == nil {
		return 0
	}
	return len(s.Skipped.Errors)
}

func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// FixNestedDirectories walks root and collapses every directory whose only qualifying
// content is a single nested directory.
func FixNestedDirectories(root string, skipNameMatch, dryRun bool) error {
	_, err := Run(Options{Root: root, SkipNameMatch: skipNameMatch, DryRun: dryRun})
	return err
}

// Run performs one pass over opts.Root. Directories that cannot be inspected are skipped
// and recorded in the summary; the first failed merge stops the pass. The summary is
// returned alongside a merge error so callers can tell whether anything was changed.
func Run(opts Options) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFS{}
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	summary := &Summary{
		RunID:         runID,
		Root:          opts.Root,
		DryRun:        opts.DryRun,
		SkipNameMatch: opts.SkipNameMatch,
		Started:       time.Now(),
	}
	defer func() {
		summary.Finished = time.Now()
	}()

	resolver := NewResolver(fsys, opts.DryRun, opts.Observers...)
	resolver.runID = runID
	resolver.summary = summary

	var walkErr error
	skip := func(dir string, err error) {
		zap.S().Debugf("skipping %q: %v", dir, err)
		summary.Skipped = multierror.Append(summary.Skipped, err)
		if e := resolver.notify(Event{Kind: EventSkip, Dir: dir, Path: dir, Err: err}); e != nil && walkErr == nil {
			walkErr = e
		}
	}

	unreadable := map[string]bool{}
	walker := NewWalker(fsys, opts.Root,
		WithExclude(opts.Exclude...),
		WithReadErrorHandler(func(dir string, err error) {
			unreadable[dir] = true
			skip(dir, fmt.Errorf("read dir %q: %w", dir, err))
		}),
	)

	zap.L().Info("starting to fix redundant nested directories",
		zap.String("root", opts.Root),
		zap.Bool("skip_name_match", opts.SkipNameMatch),
		zap.Bool("dry_run", opts.DryRun),
		zap.String("run_id", runID))

	for dir := range walker.All() {
		if walkErr != nil {
			return summary, walkErr
		}
		summary.Visited++
		if err := resolver.notify(Event{Kind: EventVisit, Dir: dir, Path: dir}); err != nil {
			return summary, err
		}
		if unreadable[dir] {
			continue
		}
		names, err := QualifyingNested(fsys, dir, opts.SkipNameMatch)
		if err != nil {
			skip(dir, err)
			continue
		}
		if len(names) != 1 {
			continue
		}
		if err := resolver.Unnest(dir, names[0]); err != nil {
			return summary, err
		}
	}
	if walkErr != nil {
		return summary, walkErr
	}

	zap.L().Info("finished fixing redundant nested directories",
		zap.Int("visited", summary.Visited),
		zap.Int("merged", summary.Merged),
		zap.Int("moved", summary.Moved),
		zap.Int("removed", summary.Removed),
		zap.Int("skipped", summary.SkippedCount()),
		zap.Bool("dry_run", opts.DryRun))
	return summary, nil
}
