package nest

import (
	"iter"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/garethgeorge/fixnested/internal/fsutil"
)

// Walker enumerates every directory below a root depth first using an explicit stack.
// A Walker is single use. Symlinks are not followed, so a symlink to a directory is never
// descended into.
type Walker struct {
	fsys        fsutil.FS
	root        string
	stack       []string
	exclude     []string
	onReadError func(dir string, err error)
}

type WalkerOption func(*Walker)

// WithExclude skips directories whose slash-separated path relative to the root matches
// any of the doublestar patterns. Excluded directories are neither yielded nor descended.
func WithExclude(patterns ...string) WalkerOption {
	return func(w *Walker) {
		w.exclude = append(w.exclude, patterns...)
	}
}

// WithReadErrorHandler is called for every directory whose entries could not be read.
func WithReadErrorHandler(fn func(dir string, err error)) WalkerOption {
	return func(w *Walker) {
		w.onReadError = fn
	}
}

func NewWalker(fsys fsutil.FS, root string, opts ...WalkerOption) *Walker {
	w := &Walker{fsys: fsys, root: root}
	for _, opt := range opts {
		opt(w)
	}
	if fsutil.IsDir(fsys, root) {
		w.stack = append(w.stack, root)
	}
	return w
}

// Next pops the next directory, queues its subdirectories and returns it. A directory
// that can't be read is still returned but contributes no children.
func (w *Walker) Next() (string, bool) {
	if len(w.stack) == 0 {
		return "", false
	}
	dir := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	ents, err := w.fsys.ReadDir(dir)
	if err != nil {
		if w.onReadError != nil {
			w.onReadError(dir, err)
		}
		return dir, true
	}
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		p := filepath.Join(dir, ent.Name())
		if w.excluded(p) {
			continue
		}
		w.stack = append(w.stack, p)
	}
	return dir, true
}

// All returns the remaining directories as an iterator.
func (w *Walker) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			dir, ok := w.Next()
			if !ok || !yield(dir) {
				return
			}
		}
	}
}

func (w *Walker) excluded(p string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
