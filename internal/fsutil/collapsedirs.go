package fsutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrDestinationExists is returned when a move would replace an existing entry.
var ErrDestinationExists = errors.New("destination already exists")

// DirName returns the last element of p. The second result is false when p has no name
// of its own, e.g. a filesystem root, "." or "..".
func DirName(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	clean := filepath.Clean(p)
	if vol := filepath.VolumeName(clean); vol != "" {
		rest := clean[len(vol):]
		if rest == "" || rest == string(filepath.Separator) {
			return "", false
		}
	}
	base := filepath.Base(clean)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return base, true
}

// MoveNoReplace renames src to dst and refuses to replace anything already at dst.
// os.Rename silently replaces files on unix so the check has to happen first.
func MoveNoReplace(fsys FS, src, dst string) error {
	exists, err := Exists(fsys, dst)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("rename %q to %q: %w", src, dst, ErrDestinationExists)
	}
	if err := fsys.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %q to %q: %w", src, dst, err)
	}
	return nil
}

// TempSibling picks an unused hidden path next to dir that dir can be moved aside to.
func TempSibling(fsys FS, dir string) (string, error) {
	name, ok := DirName(dir)
	if !ok {
		return "", fmt.Errorf("no name to derive a temporary path from %q", dir)
	}
	parent := filepath.Dir(filepath.Clean(dir))
	for i := 0; i < 8; i++ {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		candidate := filepath.Join(parent, "."+name+".unnest-"+suffix)
		exists, err := Exists(fsys, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free temporary name next to %q", dir)
}
