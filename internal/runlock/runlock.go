// Package runlock keeps two runs from repairing the same tree at once.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another run is in progress")

type Lock struct {
	root string
	fl   *flock.Flock
}

// Acquire takes an exclusive lock for root. The lock file lives in locksDir, never inside
// the tree being repaired.
func Acquire(locksDir, root string) (*Lock, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}
	if err := os.MkdirAll(locksDir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory %v: %w", locksDir, err)
	}

	sum := sha256.Sum256([]byte(abs))
	fl := flock.New(filepath.Join(locksDir, hex.EncodeToString(sum[:8])+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %v: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w on %v (lock file %v)", ErrLocked, abs, fl.Path())
	}
	return &Lock{root: abs, fl: fl}, nil
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %v: %w", l.fl.Path(), err)
	}
	return nil
}
