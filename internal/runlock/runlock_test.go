package runlock

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireExclusive(t *testing.T) {
	locks := t.TempDir()
	root := t.TempDir()

	first, err := Acquire(locks, root)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !strings.HasPrefix(first.Path(), locks) {
		t.Errorf("lock file %q is not under %q", first.Path(), locks)
	}

	if _, err := Acquire(locks, root); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}

	// A different spelling of the same root maps to the same lock.
	if _, err := Acquire(locks, filepath.Join(root, ".")); !errors.Is(err, ErrLocked) {
		t.Fatalf("Acquire via an equivalent path error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := Acquire(locks, root)
	if err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
	defer again.Release()
}

func TestAcquireIndependentRoots(t *testing.T) {
	locks := t.TempDir()
	a, err := Acquire(locks, t.TempDir())
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer a.Release()
	b, err := Acquire(locks, t.TempDir())
	if err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	defer b.Release()
}
