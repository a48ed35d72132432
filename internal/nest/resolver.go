package nest

import (
	"errors"
	"fmt"

	"github.com/garethgeorge/fixnested/internal/fsutil"
	"go.uber.org/zap"
)

var (
	ErrDestinationExists = fsutil.ErrDestinationExists
	ErrNestedNotFound    = errors.New("nested directory not found")
)

// MergeError reports a failed merge of a nested directory into Dir.
type MergeError struct {
	Dir  string // parent the merge targeted
	Op   string // read, move, remove or observe
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("unnest %q: %s %q: %v", e.Dir, e.Op, e.Path, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// QualifyingNested returns the names of dir's direct subdirectories that count towards a
// merge: every subdirectory when skipNameMatch is set, otherwise only those named like
// dir itself. A symlink to a directory is not a subdirectory. It never modifies the
// filesystem.
func QualifyingNested(fsys fsutil.FS, dir string, skipNameMatch bool) ([]string, error) {
	parentName, hasName := fsutil.DirName(dir)
	if !hasName && !skipNameMatch {
		zap.S().Errorf("failed to get directory name for %q, no nested directory can match it", dir)
	}

	ents, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var names []string
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		if skipNameMatch {
			names = append(names, ent.Name())
			continue
		}
		matches := hasName && ent.Name() == parentName
		zap.L().Debug("nested directory", zap.String("dir", dir), zap.String("name", ent.Name()), zap.Bool("name_matches", matches))
		if matches {
			names = append(names, ent.Name())
		}
	}
	zap.S().Debugf("counted %d qualifying nested directories in %q", len(names), dir)
	return names, nil
}

// CountNested returns the number of qualifying nested directories in dir.
func CountNested(fsys fsutil.FS, dir string, skipNameMatch bool) (int, error) {
	names, err := QualifyingNested(fsys, dir, skipNameMatch)
	return len(names), err
}

// Resolver merges a single qualifying nested directory into its parent.
type Resolver struct {
	fsys      fsutil.FS
	dryRun    bool
	runID     string
	observers []Observer
	summary   *Summary
}

// NewResolver returns a Resolver that merges through fsys and reports every step to the
// observers. Its counts are available from Summary.
func NewResolver(fsys fsutil.FS, dryRun bool, observers ...Observer) *Resolver {
	if fsys == nil {
		fsys = fsutil.OSFS{}
	}
	return &Resolver{
		fsys:      fsys,
		dryRun:    dryRun,
		observers: observers,
		summary:   &Summary{DryRun: dryRun},
	}
}

func (r *Resolver) Summary() *Summary {
	return r.summary
}

func (r *Resolver) notify(ev Event) error {
	ev.RunID = r.runID
	ev.DryRun = r.dryRun
	for _, o := range r.observers {
		if err := o.Observe(ev); err != nil {
			return err
		}
	}
	return nil
}
