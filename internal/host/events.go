package host

import "github.com/forgeide/pkgsync/internal/domain/project"

// EventKind classifies a change notification. The engine filters to the
// kinds it cares about and ignores the rest.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventProjectAdded
	EventProjectChanged
	EventProjectRemoved
	EventSolutionLoaded
	EventSolutionChanged
	EventSourcesChanged
)

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventProjectAdded:
		return "project_added"
	case EventProjectChanged:
		return "project_changed"
	case EventProjectRemoved:
		return "project_removed"
	case EventSolutionLoaded:
		return "solution_loaded"
	case EventSolutionChanged:
		return "solution_changed"
	case EventSourcesChanged:
		return "sources_changed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one notification from a change source. Project is empty for
// solution-level and source-level events.
type ChangeEvent struct {
	Kind    EventKind
	Project project.ID
}

// ChangeHandler receives change events. Implementations must be safe to call
// from any goroutine and must not block.
type ChangeHandler func(ChangeEvent)
