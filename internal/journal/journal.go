package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/garethgeorge/fixnested/internal/nest"
	bolt "go.etcd.io/bbolt"
)

var (
	RunsBucket    = []byte("journal.runs")    // run id -> Run
	EntriesBucket = []byte("journal.entries") // run id -> nested bucket of seq -> Entry
)

var ErrRunNotFound = errors.New("run not found")

// Run is the journal's record of one pass.
type Run struct {
	ID            string    `json:"id"`
	Root          string    `json:"root"`
	DryRun        bool      `json:"dryRun"`
	SkipNameMatch bool      `json:"skipNameMatch"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	Completed     bool      `json:"completed"`
	Visited       int       `json:"visited"`
	Merged        int       `json:"merged"`
	Moved         int       `json:"moved"`
	Removed       int       `json:"removed"`
	Mutations     int       `json:"mutations"`
	Skipped       int       `json:"skipped"`
	Error         string    `json:"error,omitempty"`
}

// Entry is a single merge, move or remove, written before it is applied.
type Entry struct {
	Seq    uint64    `json:"seq"`
	Kind   string    `json:"kind"`
	Dir    string    `json:"dir"`
	Path   string    `json:"path"`
	Dest   string    `json:"dest,omitempty"`
	DryRun bool      `json:"dryRun"`
	Time   time.Time `json:"time"`
}

// Journal is a write-ahead record of every change a run makes, kept in a bbolt database.
type Journal struct {
	db *bolt.DB
}

var _ nest.Observer = (*Journal)(nil)

func Open(databasePath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(databasePath), 0700); err != nil {
		return nil, fmt.Errorf("error creating journal directory: %w", err)
	}

	db, err := bolt.Open(databasePath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening journal: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{RunsBucket, EntriesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %s: %w", string(bucket), err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of a run. opts.RunID must be set.
func (j *Journal) Begin(opts nest.Options) error {
	if opts.RunID == "" {
		return errors.New("journal: run id is required")
	}
	return j.putRun(&Run{
		ID:            opts.RunID,
		Root:          opts.Root,
		DryRun:        opts.DryRun,
		SkipNameMatch: opts.SkipNameMatch,
		Started:       time.Now(),
	})
}

// Observe appends merge, move and remove events to the run's entries.
func (j *Journal) Observe(ev nest.Event) error {
	switch ev.Kind {
	case nest.EventMerge, nest.EventMove, nest.EventRemove:
	default:
		return nil
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(EntriesBucket).CreateBucketIfNotExists([]byte(ev.RunID))
		if err != nil {
			return fmt.Errorf("creating entries bucket for run %v: %w", ev.RunID, err)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(&Entry{
			Seq:    seq,
			Kind:   ev.Kind.String(),
			Dir:    ev.Dir,
			Path:   ev.Path,
			Dest:   ev.Dest,
			DryRun: ev.DryRun,
			Time:   time.Now(),
		})
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// Finish stores the outcome of a run started with Begin.
func (j *Journal) Finish(s *nest.Summary, runErr error) error {
	run, err := j.Run(s.RunID)
	if err != nil {
		return err
	}
	run.Finished = s.Finished
	if run.Finished.IsZero() {
		run.Finished = time.Now()
	}
	run.Completed = runErr == nil
	run.Visited = s.Visited
	run.Merged = s.Merged
	run.Moved = s.Moved
	run.Removed = s.Removed
	run.Mutations = s.Mutations
	run.Skipped = s.SkippedCount()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return j.putRun(run)
}

func (j *Journal) Run(id string) (*Run, error) {
	var run Run
	if err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(RunsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %v", ErrRunNotFound, id)
		}
		return json.Unmarshal(data, &run)
	}); err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs returns up to limit runs, most recent first. A limit <= 0 returns every run.
func (j *Journal) Runs(limit int) ([]*Run, error) {
	var runs []*Run
	if err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(RunsBucket).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", string(k), err)
			}
			runs = append(runs, &run)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Slice(runs, func(a, b int) bool {
		return runs[a].Started.After(runs[b].Started)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Entries returns the recorded steps of a run in the order they were taken.
func (j *Journal) Entries(runID string) ([]*Entry, error) {
	var entries []*Entry
	if err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EntriesBucket).Bucket([]byte(runID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %d of run %v: %w", btoi(k), runID, err)
			}
			entries = append(entries, &e)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *Journal) putRun(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %v: %w", run.ID, err)
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(RunsBucket).Put([]byte(run.ID), data)
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
