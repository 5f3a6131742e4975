// Package dispatch contains the pure business logic for dispatch manifests.
// This is part of the Functional Core - no I/O, only pure functions.
package dispatch

// Status represents the lifecycle state of one branch sub-dispatch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPacking    Status = "packing"
	StatusPacked     Status = "packed"
	StatusDispatched Status = "dispatched"
	StatusReceived   Status = "received"
	StatusIssue      Status = "issue"
)

// flow is the normal forward order of a sub-dispatch.
var flow = []Status{StatusPending, StatusPacking, StatusPacked, StatusDispatched, StatusReceived}

// transitions is the complete set of legal (from, to) moves.
// Forward moves advance one step at a time; any non-terminal state may raise an issue.
// Leaving issue is not listed here: it only happens through ResolveIssue.
var transitions = map[Status]map[Status]bool{
	StatusPending:    {StatusPacking: true, StatusIssue: true},
	StatusPacking:    {StatusPacked: true, StatusIssue: true},
	StatusPacked:     {StatusDispatched: true, StatusIssue: true},
	StatusDispatched: {StatusReceived: true, StatusIssue: true},
	StatusReceived:   {},
	StatusIssue:      {},
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}

// IsValid checks if the status is one of the known states.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal returns true for states with no outgoing transitions.
// issue is not terminal: it can be resolved back into the flow.
func (s Status) IsTerminal() bool {
	return s == StatusReceived
}

// Rank returns the position of the status along the forward flow,
// or -1 for issue and unknown values.
func (s Status) Rank() int {
	for i, st := range flow {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether moving from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// AllStatuses returns every known status in flow order, issue last.
func AllStatuses() []Status {
	out := make([]Status, 0, len(flow)+1)
	out = append(out, flow...)
	return append(out, StatusIssue)
}

// InitialStatus returns the status every sub-dispatch starts in.
func InitialStatus() Status {
	return StatusPending
}
