// Package shellscript renders the steps of a run as a POSIX shell script, so that a dry
// run can be reviewed and applied by hand.
package shellscript

import (
	"fmt"
	"io"

	"al.essio.dev/pkg/shellescape"
	"github.com/garethgeorge/fixnested/internal/nest"
)

type Writer struct {
	w       io.Writer
	started bool
	steps   int
}

var _ nest.Observer = (*Writer)(nil)

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Observe(ev nest.Event) error {
	var line string
	switch ev.Kind {
	case nest.EventMerge:
		line = fmt.Sprintf("\n# merge %s into %s\n", ev.Path, ev.Dest)
	case nest.EventMove:
		line = fmt.Sprintf("mv -n -- %s %s\n", quote(ev.Path), quote(ev.Dest))
		s.steps++
	case nest.EventRemove:
		line = fmt.Sprintf("rmdir -- %s\n", quote(ev.Path))
		s.steps++
	default:
		return nil
	}
	if err := s.header(); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, line); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// Close terminates the script. A script without steps still gets a header.
func (s *Writer) Close() error {
	if err := s.header(); err != nil {
		return err
	}
	if s.steps == 0 {
		if _, err := io.WriteString(s.w, "# no redundant nested directories found\n"); err != nil {
			return fmt.Errorf("write script: %w", err)
		}
	}
	return nil
}

func (s *Writer) header() error {
	if s.started {
		return nil
	}
	s.started = true
	if _, err := io.WriteString(s.w, "#!/bin/sh\nset -eu\n"); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

func quote(s string) string {
	return shellescape.Quote(s)
}
