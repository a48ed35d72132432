package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/garethgeorge/fixnested/internal/nest"
	"github.com/natefinch/atomic"
)

// Report is the JSON document written after a run.
type Report struct {
	RunID           string    `json:"runId"`
	Root            string    `json:"root"`
	DryRun          bool      `json:"dryRun"`
	SkipNameMatch   bool      `json:"skipNameMatch"`
	Passes          int       `json:"passes"`
	Started         time.Time `json:"started"`
	Finished        time.Time `json:"finished"`
	DurationSeconds float64   `json:"durationSeconds"`
	Visited         int       `json:"visited"`
	Merged          int       `json:"merged"`
	Moved           int       `json:"moved"`
	Removed         int       `json:"removed"`
	Mutated         bool      `json:"mutated"`
	Skipped         []string  `json:"skipped,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// New builds a report from the summaries of one or more passes over the same root.
func New(summaries []*nest.Summary, runErr error) *Report {
	r := &Report{Passes: len(summaries)}
	for i, s := range summaries {
		if i == 0 {
			r.RunID = s.RunID
			r.Root = s.Root
			r.DryRun = s.DryRun
			r.SkipNameMatch = s.SkipNameMatch
			r.Started = s.Started
		}
		r.Finished = s.Finished
		r.Visited += s.Visited
		r.Merged += s.Merged
		r.Moved += s.Moved
		r.Removed += s.Removed
		r.Mutated = r.Mutated || s.Mutated()
		if s.Skipped != nil {
			for _, err := range s.Skipped.Errors {
				r.Skipped = append(r.Skipped, err.Error())
			}
		}
	}
	r.DurationSeconds = r.Finished.Sub(r.Started).Seconds()
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// Write replaces the file at path with r, atomically.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
