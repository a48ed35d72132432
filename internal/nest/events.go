package nest

import "fmt"

type EventKind int

const (
	EventVisit  EventKind = iota // a directory was taken off the walk stack
	EventSkip                    // a directory could not be inspected
	EventMerge                   // a nested directory is about to be merged into its parent
	EventMove                    // an entry is about to be renamed
	EventRemove                  // an emptied directory is about to be removed
)

func (k EventKind) String() string {
	switch k {
	case EventVisit:
		return "visit"
	case EventSkip:
		return "skip"
	case EventMerge:
		return "merge"
	case EventMove:
		return "move"
	case EventRemove:
		return "remove"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes one step of a run. Merge, move and remove events are delivered before
// the filesystem is touched.
type Event struct {
	Kind   EventKind
	RunID  string
	Dir    string // directory under inspection
	Path   string // path acted on
	Dest   string // destination of a move or merge
	DryRun bool
	Err    error // set on EventSkip
}

// Observer receives run events. Returning an error aborts the run before the pending
// mutation is applied.
type Observer interface {
	Observe(Event) error
}

type ObserverFunc func(Event) error

func (f ObserverFunc) Observe(ev Event) error {
	return f(ev)
}
