package nest

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/garethgeorge/fixnested/internal/fsutil"
	"go.uber.org/zap"
)

// Unnest moves every entry of parent/name up into parent and removes the emptied
// directory. In dry run mode the same steps are reported but nothing is changed.
func (r *Resolver) Unnest(parent, name string) error {
	nested := filepath.Join(parent, name)
	if !fsutil.IsDir(r.fsys, nested) {
		return &MergeError{Dir: parent, Op: "read", Path: nested, Err: ErrNestedNotFound}
	}
	ents, err := r.fsys.ReadDir(nested)
	if err != nil {
		return &MergeError{Dir: parent, Op: "read", Path: nested, Err: err}
	}

	if err := r.checkDestinations(parent, nested, ents); err != nil {
		return err
	}

	if r.dryRun {
		zap.S().Infof("would move contents from %q to %q", nested, parent)
	} else {
		zap.S().Infof("moving contents from %q to %q", nested, parent)
	}
	if err := r.notify(Event{Kind: EventMerge, Dir: parent, Path: nested, Dest: parent}); err != nil {
		return &MergeError{Dir: parent, Op: "observe", Path: nested, Err: err}
	}

	// An entry carrying the nested directory's own name would land on the nested
	// directory itself, so the nested directory is moved aside first.
	src := nested
	if hasEntry(ents, name) {
		tmp, err := fsutil.TempSibling(r.fsys, nested)
		if err != nil {
			return &MergeError{Dir: parent, Op: "move", Path: nested, Err: err}
		}
		if err := r.move(parent, nested, tmp); err != nil {
			return err
		}
		src = tmp
	}

	for _, ent := range ents {
		to := filepath.Join(parent, ent.Name())
		if err := r.move(parent, filepath.Join(src, ent.Name()), to); err != nil {
			return err
		}
		r.summary.Moved++
	}

	if r.dryRun {
		zap.S().Infof("would remove empty nested directory %q", src)
		if err := r.notify(Event{Kind: EventRemove, Dir: parent, Path: src}); err != nil {
			return &MergeError{Dir: parent, Op: "observe", Path: src, Err: err}
		}
		r.summary.Removed++
		r.summary.Merged++
		return nil
	}

	rest, err := r.fsys.ReadDir(src)
	if err != nil {
		return &MergeError{Dir: parent, Op: "read", Path: src, Err: err}
	}
	r.summary.Merged++
	if len(rest) > 0 {
		zap.S().Warnf("nested directory %q is not empty after moving its contents, leaving it in place", src)
		return nil
	}

	zap.S().Infof("removing empty nested directory %q", src)
	if err := r.notify(Event{Kind: EventRemove, Dir: parent, Path: src}); err != nil {
		return &MergeError{Dir: parent, Op: "observe", Path: src, Err: err}
	}
	if err := r.fsys.Remove(src); err != nil {
		return &MergeError{Dir: parent, Op: "remove", Path: src, Err: err}
	}
	r.summary.Mutations++
	r.summary.Removed++
	return nil
}

func (r *Resolver) move(parent, from, to string) error {
	if err := r.notify(Event{Kind: EventMove, Dir: parent, Path: from, Dest: to}); err != nil {
		return &MergeError{Dir: parent, Op: "observe", Path: from, Err: err}
	}
	if r.dryRun {
		zap.S().Infof("would move %q to %q", from, to)
		return nil
	}
	zap.S().Infof("moving %q to %q", from, to)
	if err := fsutil.MoveNoReplace(r.fsys, from, to); err != nil {
		return &MergeError{Dir: parent, Op: "move", Path: from, Err: err}
	}
	r.summary.Mutations++
	return nil
}

// checkDestinations refuses the merge before anything is moved when an entry of nested
// would land on something already in parent. A dry run only warns.
func (r *Resolver) checkDestinations(parent, nested string, ents []fs.DirEntry) error {
	for _, ent := range ents {
		to := filepath.Join(parent, ent.Name())
		if to == nested {
			continue
		}
		exists, err := fsutil.Exists(r.fsys, to)
		switch {
		case err != nil && r.dryRun:
			zap.S().Warnf("could not check destination: %v", err)
		case err != nil:
			return &MergeError{Dir: parent, Op: "move", Path: filepath.Join(nested, ent.Name()), Err: err}
		case exists && r.dryRun:
			zap.S().Warnf("destination %q already exists, a real run would stop here", to)
		case exists:
			return &MergeError{Dir: parent, Op: "move", Path: filepath.Join(nested, ent.Name()),
				Err: fmt.Errorf("rename %q to %q: %w", filepath.Join(nested, ent.Name()), to, ErrDestinationExists)}
		}
	}
	return nil
}

func hasEntry(ents []fs.DirEntry, name string) bool {
	for _, ent := range ents {
		if ent.Name() == name {
			return true
		}
	}
	return false
}
