package nest

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
	"testing"

	"github.com/garethgeorge/fixnested/internal/fsutil"
	"github.com/garethgeorge/fixnested/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	events []Event
	failOn EventKind
	err    error
}

func (r *recorder) Observe(ev Event) error {
	r.events = append(r.events, ev)
	if r.err != nil && ev.Kind == r.failOn {
		return r.err
	}
	return nil
}

func (r *recorder) kinds(kinds ...EventKind) []string {
	var out []string
	for _, ev := range r.events {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev.Kind.String()+" "+ev.Path+" "+ev.Dest)
			}
		}
	}
	return out
}


func TestUnnestMovesEntriesUp(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "a")
	fsys.WriteFile("/p/p/sub/b.txt", "b")
	fsys.WriteFile("/p/keep.txt", "keep")

	r := NewResolver(fsys, false)
	if err := r.Unnest("/p", "p"); err != nil {
		t.Fatalf("Unnest: %v", err)
	}

	want := []string{"/p/", "/p/a.txt", "/p/keep.txt", "/p/sub/", "/p/sub/b.txt"}
	if diff := cmp.Diff(want, fsys.Paths()); diff != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", diff)
	}
	if r.Summary().Moved != 2 || r.Summary().Removed != 1 || r.Summary().Merged != 1 || r.Summary().Mutations != 3 {
		t.Errorf("unexpected summary counts: %+v", r.Summary())
	}
}

func TestUnnestCollisionIsFatal(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "nested")
	fsys.WriteFile("/p/p/z.txt", "nested")
	fsys.WriteFile("/p/z.txt", "outer")

	r := NewResolver(fsys, false)
	err := r.Unnest("/p", "p")
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("Unnest error = %v, want ErrDestinationExists", err)
	}
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("Unnest error %T is not a *MergeError", err)
	}
	if mergeErr.Path != "/p/p/z.txt" || mergeErr.Op != "move" {
		t.Errorf("unexpected merge error %+v", mergeErr)
	}

	// Destinations are checked before anything moves, so the tree is untouched.
	want := []string{"/p/", "/p/p/", "/p/p/a.txt", "/p/p/z.txt", "/p/z.txt"}
	if diff := cmp.Diff(want, fsys.Paths()); diff != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", diff)
	}
	if len(fsys.Mutations) != 0 {
		t.Errorf("collision left mutations behind: %v", fsys.Mutations)
	}
}

func TestUnnestCollisionKeepsSelfNamedDirectoryInPlace(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/r/a/a/a/file.txt", "x")
	fsys.WriteFile("/r/a/a/z.txt", "nested")
	fsys.WriteFile("/r/a/z.txt", "outer")
	before := fsys.Paths()

	rec := &recorder{}
	r := NewResolver(fsys, false, rec)
	err := r.Unnest("/r/a", "a")
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("Unnest error = %v, want ErrDestinationExists", err)
	}
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) || mergeErr.Path != "/r/a/a/z.txt" {
		t.Errorf("unexpected merge error %v", err)
	}
	if diff := cmp.Diff(before, fsys.Paths()); diff != "" {
		t.Errorf("nested directory was not left in place (-before +after):\n%s", diff)
	}
	if len(fsys.Mutations) != 0 || len(rec.events) != 0 {
		t.Errorf("expected no mutations or events, got %v and %v", fsys.Mutations, rec.events)
	}
}

func TestUnnestRenameFailure(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "a")
	fsys.WriteFile("/p/p/b.txt", "b")
	fsys.Fail["rename /p/p/b.txt"] = syscall.EXDEV

	r := NewResolver(fsys, false)
	err := r.Unnest("/p", "p")
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) || mergeErr.Op != "move" || mergeErr.Path != "/p/p/b.txt" {
		t.Fatalf("Unnest error = %v, want a move MergeError for /p/p/b.txt", err)
	}
	if !errors.Is(err, syscall.EXDEV) {
		t.Errorf("Unnest error = %v, want it to wrap EXDEV", err)
	}
	if r.Summary().Mutations != 1 || r.Summary().Moved != 1 {
		t.Errorf("unexpected summary counts: %+v", r.Summary())
	}
	if !fsutil.IsDir(fsys, "/p/p") {
		t.Error("nested directory should be left in place")
	}
}

func TestUnnestDryRunSurfacesReadFailure(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "a")
	fsys.Fail["readdir /p/p"] = fs.ErrPermission

	r := NewResolver(fsys, true)
	err := r.Unnest("/p", "p")
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) || mergeErr.Op != "read" || !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("Unnest error = %v, want a read MergeError", err)
	}
}

func TestUnnestEntryNamedLikeNested(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/r/a/a/a/file.txt", "x")
	fsys.WriteFile("/r/a/a/other.txt", "y")

	rec := &recorder{}
	r := NewResolver(fsys, false, rec)
	if err := r.Unnest("/r/a", "a"); err != nil {
		t.Fatalf("Unnest: %v", err)
	}

	want := []string{"/r/", "/r/a/", "/r/a/a/", "/r/a/a/file.txt", "/r/a/other.txt"}
	if diff := cmp.Diff(want, fsys.Paths()); diff != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", diff)
	}
	moves := rec.kinds(EventMove)
	if len(moves) != 3 || !strings.HasPrefix(moves[0], "move /r/a/a /r/a/.a.unnest-") {
		t.Errorf("expected the nested directory to be moved aside first, got %v", moves)
	}
}

func TestUnnestDryRun(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/r/a/a/a/file.txt", "x")
	fsys.WriteFile("/r/a/a/taken.txt", "y")
	fsys.WriteFile("/r/a/taken.txt", "z")
	before := fsys.Paths()

	rec := &recorder{}
	r := NewResolver(fsys, true, rec)
	if err := r.Unnest("/r/a", "a"); err != nil {
		t.Fatalf("dry run Unnest: %v", err)
	}

	if len(fsys.Mutations) != 0 {
		t.Errorf("dry run mutated the filesystem: %v", fsys.Mutations)
	}
	if diff := cmp.Diff(before, fsys.Paths()); diff != "" {
		t.Errorf("dry run changed the tree (-before +after):\n%s", diff)
	}
	if got := len(rec.kinds(EventMerge)); got != 1 {
		t.Errorf("got %d merge events, want 1", got)
	}
	if got := len(rec.kinds(EventMove)); got != 3 {
		t.Errorf("got %d move events, want 3", got)
	}
	if got := len(rec.kinds(EventRemove)); got != 1 {
		t.Errorf("got %d remove events, want 1", got)
	}
	for _, ev := range rec.events {
		if !ev.DryRun {
			t.Errorf("event %v not flagged as dry run", ev)
		}
	}
	if r.Summary().Mutations != 0 {
		t.Errorf("dry run reported %d mutations", r.Summary().Mutations)
	}
}

func TestUnnestObserverErrorStopsBeforeMutation(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "a")

	journalDown := errors.New("journal unavailable")
	r := NewResolver(fsys, false, &recorder{failOn: EventMove, err: journalDown})
	err := r.Unnest("/p", "p")
	if !errors.Is(err, journalDown) {
		t.Fatalf("Unnest error = %v, want %v", err, journalDown)
	}
	if len(fsys.Mutations) != 0 {
		t.Errorf("filesystem mutated despite observer failure: %v", fsys.Mutations)
	}
}

func TestUnnestRemoveFailure(t *testing.T) {
	fsys := testutil.NewMemFS()
	fsys.WriteFile("/p/p/a.txt", "a")
	fsys.Fail["remove /p/p"] = errors.New("device busy")

	r := NewResolver(fsys, false)
	err := r.Unnest("/p", "p")
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) || mergeErr.Op != "remove" {
		t.Fatalf("Unnest error = %v, want a remove MergeError", err)
	}
	if r.Summary().Mutations != 1 {
		t.Errorf("got %d mutations, want 1", r.Summary().Mutations)
	}
}
